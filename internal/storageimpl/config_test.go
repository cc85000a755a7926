package storageimpl

import (
	"testing"

	"github.com/strusgo/strusengine/internal/metadata"
)

func TestParseConfigFull(t *testing.T) {
	cfg, err := ParseConfig("path=/tmp/idx; metadata=doclen UINT16, score FLOAT32; acl=yes; max_positions=1000")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Path != "/tmp/idx" {
		t.Fatalf("Path = %q", cfg.Path)
	}
	if !cfg.ACLEnabled {
		t.Fatalf("ACLEnabled = false, want true")
	}
	if cfg.MaxPositions != 1000 {
		t.Fatalf("MaxPositions = %d, want 1000", cfg.MaxPositions)
	}
	want := []metadata.ColumnDef{{Name: "doclen", Type: metadata.UInt16}, {Name: "score", Type: metadata.Float32}}
	if len(cfg.Metadata) != len(want) {
		t.Fatalf("Metadata = %+v", cfg.Metadata)
	}
	for i, c := range want {
		if cfg.Metadata[i] != c {
			t.Fatalf("Metadata[%d] = %+v, want %+v", i, cfg.Metadata[i], c)
		}
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("path=./data")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.MaxPositions != DefaultMaxPositions {
		t.Fatalf("MaxPositions = %d, want default %d", cfg.MaxPositions, DefaultMaxPositions)
	}
	if cfg.ACLEnabled {
		t.Fatalf("ACLEnabled should default to false")
	}
}

func TestParseConfigRejectsMissingPath(t *testing.T) {
	if _, err := ParseConfig("acl=yes"); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestParseConfigRejectsBadMaxPositions(t *testing.T) {
	if _, err := ParseConfig("path=/x;max_positions=70000"); err == nil {
		t.Fatalf("expected error for max_positions exceeding 65535")
	}
}

func TestParseConfigRejectsUnknownKey(t *testing.T) {
	if _, err := ParseConfig("path=/x;bogus=1"); err == nil {
		t.Fatalf("expected error for unknown configuration key")
	}
}
