// Package admission implements C4 AdmissionController: login request
// evaluation against bans, whitelist, username rules, and the addon-set
// handshake, per spec.md §4.4.
package admission

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/addons"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/wire"
	"scenerelay/logging"
	loggingadmission "scenerelay/logging/admission"
)

// Result is the outcome of Evaluate: a LoginResponse plus, on success, the
// freshly constructed PlayerRecord the caller should insert into the
// SessionTable.
type Result struct {
	Status          wire.LoginStatus
	AddonOrder      []int32
	NetworkedAddons []wire.AddonDescriptor
	Record          *session.PlayerRecord
}

// Controller evaluates LoginRequests. It is stateless apart from its
// collaborators: the persistent AccessLists, the in-memory AddonRegistry,
// and the SessionTable it checks username uniqueness against.
type Controller struct {
	table    *session.Table
	lists    *accesslists.Lists
	registry *addons.Registry
	settings func() settings.Settings
	pub      logging.Publisher
}

func New(table *session.Table, lists *accesslists.Lists, registry *addons.Registry, settingsFn func() settings.Settings, pub logging.Publisher) *Controller {
	return &Controller{table: table, lists: lists, registry: registry, settings: settingsFn, pub: pub}
}

// Evaluate runs the first-failure-wins checks from spec.md §4.4 in order.
// id and remoteAddr are supplied by the caller (assigned at connect time,
// before any PlayerRecord exists, per I5).
func (c *Controller) Evaluate(ctx context.Context, id uint16, remoteAddr string, req wire.LoginRequest) Result {
	cfg := c.settings()
	effectiveKey := resolveAuthKey(req.AuthKey, cfg.JWTSigningKey)

	if c.lists.IsBanned(remoteAddr, effectiveKey) {
		return c.reject(ctx, id, req.Username, wire.LoginBanned, "banned")
	}

	if cfg.WhitelistEnabled && !c.lists.IsWhitelisted(effectiveKey) {
		if !c.lists.IsInPrelist(req.Username) {
			return c.reject(ctx, id, req.Username, wire.LoginNotWhiteListed, "not whitelisted")
		}
		// Promotion is persistent: the first login bearing a pre-listed
		// username claims that slot for its authKey going forward.
		if err := c.lists.PromoteFromPrelist(req.Username, effectiveKey); err != nil {
			return c.reject(ctx, id, req.Username, wire.LoginNotWhiteListed, "prelist promotion failed")
		}
	}

	if !isValidUsername(req.Username) {
		return c.reject(ctx, id, req.Username, wire.LoginInvalidUser, "invalid username characters")
	}
	if c.table.UsernameTaken(req.Username, id) {
		return c.reject(ctx, id, req.Username, wire.LoginInvalidUser, "username already active")
	}

	addonOrder, ok := c.matchAddons(req.Addons)
	if !ok {
		return c.reject(ctx, id, req.Username, wire.LoginInvalidAddons, "addon set mismatch")
	}

	rec := &session.PlayerRecord{
		ID:            id,
		RemoteAddress: remoteAddr,
		Username:      req.Username,
		AuthKey:       req.AuthKey,
	}

	loggingadmission.LoginAccepted(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}, loggingadmission.LoginAcceptedPayload{Username: req.Username})

	return Result{Status: wire.LoginSuccess, AddonOrder: addonOrder, NetworkedAddons: c.registry.All(), Record: rec}
}

func (c *Controller) reject(ctx context.Context, id uint16, username string, status wire.LoginStatus, reason string) Result {
	loggingadmission.LoginRejected(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}, loggingadmission.LoginRejectedPayload{Username: username, Reason: reason})
	result := Result{Status: status}
	if status == wire.LoginInvalidAddons {
		result.NetworkedAddons = c.registry.All()
	}
	return result
}

// matchAddons enforces exact cardinality and an exact (identifier, version)
// match against the server's registry, then derives addonOrder: the
// server-side numeric ids in client-presented order, skipping any addon the
// server does not number (spec.md §4.4 step 5).
func (c *Controller) matchAddons(clientAddons []wire.AddonDescriptor) ([]int32, bool) {
	if len(clientAddons) != c.registry.Len() {
		return nil, false
	}
	order := make([]int32, 0, len(clientAddons))
	for _, addon := range clientAddons {
		server, ok := c.registry.Lookup(addon.Identifier, addon.Version)
		if !ok {
			return nil, false
		}
		if server.ID != 0 {
			order = append(order, server.ID)
		}
	}
	return order, true
}

func isValidUsername(username string) bool {
	if username == "" {
		return false
	}
	for _, r := range username {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// resolveAuthKey treats a three-segment authKey as a JWT: if it verifies
// against signingKey, the token's subject claim becomes the effective key
// used for ban/whitelist lookups, letting an operator issue long-lived
// signed keys alongside the stock client's opaque per-session tokens
// (spec.md SPEC_FULL §3). A token that fails verification, or a key with no
// signing material configured, is used verbatim like any opaque key — its
// subject claim is ignored and it faces the same ban/whitelist checks.
func resolveAuthKey(authKey, signingKey string) string {
	if signingKey == "" || strings.Count(authKey, ".") != 2 {
		return authKey
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(authKey, &claims, func(t *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	})
	if err != nil || !token.Valid {
		return authKey
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	return authKey
}
