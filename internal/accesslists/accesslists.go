// Package accesslists is the persistent AccessLists collaborator spec.md §1
// names as external to the core: ban list, whitelist, whitelist pre-list,
// and authorized-key list, durable across process restarts via bbolt.
package accesslists

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var (
	bansBucket       = []byte("bans")
	whitelistBucket  = []byte("whitelist")
	prelistBucket    = []byte("prelist")
	authorizedBucket = []byte("authorized")

	ErrNotInPrelist = errors.New("accesslists: username not in whitelist pre-list")
)

type banEntry struct {
	Reason string `json:"reason"`
	At     int64  `json:"at"`
}

// Lists is a bbolt-backed store for the four persistent lists AdmissionController
// consults. Ban/whitelist/pre-list membership is a direct bucket lookup
// (grounded on AI-Headhunter-pinch's key registry); authorized keys are
// stored as bcrypt hashes so a leaked database dump does not hand out
// working command-bus credentials.
type Lists struct {
	db *bolt.DB
}

// Open creates or opens the access-list buckets in the bbolt file at path.
func Open(path string) (*Lists, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open accesslists db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bansBucket, whitelistBucket, prelistBucket, authorizedBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init accesslists buckets: %w", err)
	}
	return &Lists{db: db}, nil
}

func (l *Lists) Close() error {
	return l.db.Close()
}

// IsBanned reports whether remoteAddr or authKey appears in the ban list.
func (l *Lists) IsBanned(remoteAddr, authKey string) bool {
	return l.exists(bansBucket, remoteAddr) || l.exists(bansBucket, authKey)
}

// Ban records target (a remote address or an authKey) as banned.
func (l *Lists) Ban(target, reason string) error {
	entry := banEntry{Reason: reason, At: time.Now().Unix()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.put(bansBucket, target, data)
}

func (l *Lists) Unban(target string) error {
	return l.delete(bansBucket, target)
}

// IsWhitelisted reports whether authKey has been promoted into the
// whitelist, either by an operator or via pre-list promotion.
func (l *Lists) IsWhitelisted(authKey string) bool {
	return l.exists(whitelistBucket, authKey)
}

func (l *Lists) AddToWhitelist(authKey string) error {
	return l.put(whitelistBucket, authKey, []byte(time.Now().UTC().Format(time.RFC3339)))
}

// IsInPrelist reports whether username is reserved for first-login promotion.
func (l *Lists) IsInPrelist(username string) bool {
	return l.exists(prelistBucket, username)
}

func (l *Lists) AddToPrelist(username string) error {
	return l.put(prelistBucket, username, []byte{})
}

// PromoteFromPrelist moves authKey into the whitelist and removes username
// from the pre-list, persistently, per spec.md §4.4 step 2.
func (l *Lists) PromoteFromPrelist(username, authKey string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		pre := tx.Bucket(prelistBucket)
		if pre.Get([]byte(username)) == nil {
			return ErrNotInPrelist
		}
		if err := pre.Delete([]byte(username)); err != nil {
			return err
		}
		return tx.Bucket(whitelistBucket).Put([]byte(authKey), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// IsAuthorized reports whether authKey matches a stored authorized-key hash.
// Authorized keys gate CommandBus privilege (spec.md §4.9), not login
// admission, so the small list size makes an O(n) bcrypt scan acceptable.
func (l *Lists) IsAuthorized(authKey string) bool {
	var match bool
	l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(authorizedBucket).ForEach(func(_ []byte, hash []byte) error {
			if bcrypt.CompareHashAndPassword(hash, []byte(authKey)) == nil {
				match = true
			}
			return nil
		})
	})
	return match
}

// AddAuthorizedKey hashes and stores a new authorized key under a
// caller-supplied label (e.g. the operator issuing it).
func (l *Lists) AddAuthorizedKey(label, authKey string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(authKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash authorized key: %w", err)
	}
	return l.put(authorizedBucket, label, hash)
}

func (l *Lists) exists(bucket []byte, key string) bool {
	if key == "" {
		return false
	}
	var found bool
	l.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get([]byte(key)) != nil
		return nil
	})
	return found
}

func (l *Lists) put(bucket []byte, key string, value []byte) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
}

func (l *Lists) delete(bucket []byte, key string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
