package permission

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTableYAML []byte

// Table is the authoritative role -> default capability mapping. It is loaded
// once and shared by the resolver and the permission summary endpoint.
type Table struct {
	defaults map[Role]PermissionSet
}

type tableFile struct {
	Roles map[string]map[string]bool `yaml:"roles"`
}

// DefaultTable returns the table compiled into the binary.
func DefaultTable() *Table {
	table, err := LoadTable(bytes.NewReader(defaultTableYAML))
	if err != nil {
		panic(fmt.Sprintf("permission: embedded defaults invalid: %v", err))
	}
	return table
}

// LoadTableFile reads a replacement table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open permissions file: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable parses a YAML table. Every role must be present, every key must
// be a known capability, and capabilities left out default to false.
func LoadTable(r io.Reader) (*Table, error) {
	var file tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode permissions table: %w", err)
	}

	table := &Table{defaults: make(map[Role]PermissionSet, len(Roles))}
	for name, caps := range file.Roles {
		role, ok := NormalizeRole(name)
		if !ok {
			return nil, fmt.Errorf("permissions table: unknown role %q", name)
		}
		set := make(PermissionSet, len(Capabilities))
		for _, c := range Capabilities {
			set[c] = false
		}
		for key, value := range caps {
			if !IsCapability(key) {
				return nil, fmt.Errorf("permissions table: role %s: unknown capability %q", role, key)
			}
			set[Capability(key)] = value
		}
		table.defaults[role] = set
	}

	for _, role := range Roles {
		if _, ok := table.defaults[role]; !ok {
			return nil, fmt.Errorf("permissions table: role %s missing", role)
		}
	}
	return table, nil
}

// Defaults returns a copy of the role's default set. Unknown roles get an
// empty (all false) set.
func (t *Table) Defaults(role Role) PermissionSet {
	if role == RoleAdmin {
		return allGranted()
	}
	set, ok := t.defaults[role]
	if !ok {
		return PermissionSet{}
	}
	return set.Clone()
}

// Summary returns the default set of every role, for UI display.
func (t *Table) Summary() map[Role]PermissionSet {
	out := make(map[Role]PermissionSet, len(Roles))
	for _, role := range Roles {
		out[role] = t.Defaults(role)
	}
	return out
}
