package settings

import (
	"os"
	"path/filepath"
	"testing"

	"scenerelay/internal/wire"
)

func TestDefaultIsConservative(t *testing.T) {
	d := Default()
	if d.AlwaysShowMapIcons {
		t.Fatalf("expected map icons to default to hidden")
	}
	if !d.OnlyBroadcastMapIconWithWaywardCompass {
		t.Fatalf("expected the wayward-compass gate to default to on")
	}
	if d.MaxMessageLength != 512 {
		t.Fatalf("expected a default max message length of 512, got %d", d.MaxMessageLength)
	}
}

func TestEqualComparesNetworkedAddonsInOrder(t *testing.T) {
	a := Default()
	a.NetworkedAddons = []wire.AddonDescriptor{{Identifier: "core", Version: "1.0", ID: 1}}
	b := Default()
	b.NetworkedAddons = []wire.AddonDescriptor{{Identifier: "core", Version: "1.0", ID: 1}}
	if !a.Equal(b) {
		t.Fatalf("expected identical addon sets to compare equal")
	}

	c := Default()
	c.NetworkedAddons = []wire.AddonDescriptor{{Identifier: "other", Version: "1.0", ID: 1}}
	if a.Equal(c) {
		t.Fatalf("expected differing addon sets to compare unequal")
	}
}

func TestLoadValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, `
alwaysShowMapIcons: true
onlyBroadcastMapIconWithWaywardCompass: false
maxMessageLength: 256
whitelistEnabled: true
networkedAddons:
  - identifier: core
    version: "1.0"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AlwaysShowMapIcons || cfg.OnlyBroadcastMapIconWithWaywardCompass {
		t.Fatalf("unexpected flags in loaded settings: %+v", cfg)
	}
	if cfg.MaxMessageLength != 256 {
		t.Fatalf("expected maxMessageLength 256, got %d", cfg.MaxMessageLength)
	}
	if len(cfg.NetworkedAddons) != 1 || cfg.NetworkedAddons[0].Identifier != "core" {
		t.Fatalf("expected one networked addon 'core', got %+v", cfg.NetworkedAddons)
	}
}

func TestLoadRejectsMaxMessageLengthBelowMinimum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, `
maxMessageLength: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected schema validation to reject maxMessageLength: 0")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing settings file")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
