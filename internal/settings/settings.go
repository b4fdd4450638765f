// Package settings loads and validates the server-wide Settings struct
// (spec.md §6): the map-icon visibility flags, chat limits, and the
// networked-addon set. Settings is validated against a JSON Schema
// generated from its own struct tags before being accepted, so a malformed
// operator config fails fast at load time instead of surfacing as a subtle
// runtime bug in AdmissionController or UpdateRouter.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"scenerelay/internal/wire"
)

// Settings is the opaque-to-the-core-otherwise struct referenced by
// spec.md §6; only the fields the core actually branches on are named here.
type Settings struct {
	AlwaysShowMapIcons                     bool                   `json:"alwaysShowMapIcons" yaml:"alwaysShowMapIcons"`
	OnlyBroadcastMapIconWithWaywardCompass bool                   `json:"onlyBroadcastMapIconWithWaywardCompass" yaml:"onlyBroadcastMapIconWithWaywardCompass"`
	MaxMessageLength                       int                    `json:"maxMessageLength" yaml:"maxMessageLength" jsonschema:"minimum=1"`
	WhitelistEnabled                       bool                   `json:"whitelistEnabled" yaml:"whitelistEnabled"`
	NetworkedAddons                        []wire.AddonDescriptor `json:"networkedAddons" yaml:"networkedAddons"`
	JWTSigningKey                          string                 `json:"jwtSigningKey,omitempty" yaml:"jwtSigningKey,omitempty"`
}

// Default returns a conservative baseline used when no config file is given.
func Default() Settings {
	return Settings{
		AlwaysShowMapIcons:                     false,
		OnlyBroadcastMapIconWithWaywardCompass: true,
		MaxMessageLength:                       512,
		WhitelistEnabled:                       false,
	}
}

// Equal performs the value-based comparison spec.md §6 requires of
// ApplyServerSettings: two Settings are equal iff every field, including
// the networked-addon set in order, matches.
func (s Settings) Equal(other Settings) bool {
	if s.AlwaysShowMapIcons != other.AlwaysShowMapIcons ||
		s.OnlyBroadcastMapIconWithWaywardCompass != other.OnlyBroadcastMapIconWithWaywardCompass ||
		s.MaxMessageLength != other.MaxMessageLength ||
		s.WhitelistEnabled != other.WhitelistEnabled ||
		s.JWTSigningKey != other.JWTSigningKey {
		return false
	}
	if len(s.NetworkedAddons) != len(other.NetworkedAddons) {
		return false
	}
	for i, addon := range s.NetworkedAddons {
		if addon != other.NetworkedAddons[i] {
			return false
		}
	}
	return true
}

var compiledSchema *jsonschemav5.Schema

func schema() (*jsonschemav5.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	raw := reflector.Reflect(&Settings{})
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal settings schema: %w", err)
	}
	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource("settings.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("register settings schema: %w", err)
	}
	sch, err := compiler.Compile("settings.json")
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}
	compiledSchema = sch
	return sch, nil
}

// Load reads a YAML config file, validates it against the generated schema,
// and decodes it into Settings.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Settings{}, fmt.Errorf("parse settings yaml: %w", err)
	}
	doc = normalizeForSchema(doc)

	sch, err := schema()
	if err != nil {
		return Settings{}, err
	}
	if err := sch.Validate(doc); err != nil {
		return Settings{}, fmt.Errorf("settings schema validation: %w", err)
	}

	out := Default()
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings yaml: %w", err)
	}
	return out, nil
}

// normalizeForSchema converts yaml.v3's map[string]interface{} document tree
// into the map[string]interface{}/[]interface{}/json-number shapes the
// jsonschema validator expects, round-tripping through encoding/json.
func normalizeForSchema(doc any) any {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return doc
	}
	return normalized
}
