package command

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
)

// ErrUnknownCommand matches every failed lookup. Compare with errors.Is; the
// returned errors carry the requested family, name or wire value as metadata.
var ErrUnknownCommand = apperrors.New(apperrors.CodeUnknownCommand, "unknown engine command")

// Declaration describes one family and its commands in declaration order.
type Declaration struct {
	Family   Family
	Commands []Entry
}

// Entry pairs a symbolic name with its wire value.
type Entry struct {
	Name string
	Wire string
}

// Vocabulary is an immutable, validated set of command families.
type Vocabulary struct {
	families []Family
	byFamily map[Family][]Identifier
	byName   map[Family]map[string]Identifier
	byWire   map[string]Identifier
}

// New validates the declarations and builds a vocabulary. Wire values must be
// unique across all families, names unique within a family, and every family
// must declare at least one command.
func New(decls ...Declaration) (*Vocabulary, error) {
	v := &Vocabulary{
		byFamily: make(map[Family][]Identifier, len(decls)),
		byName:   make(map[Family]map[string]Identifier, len(decls)),
		byWire:   make(map[string]Identifier),
	}
	for _, decl := range decls {
		if strings.TrimSpace(string(decl.Family)) == "" {
			return nil, fmt.Errorf("command family is required")
		}
		if _, exists := v.byName[decl.Family]; exists {
			return nil, fmt.Errorf("command family %q declared twice", decl.Family)
		}
		if len(decl.Commands) == 0 {
			return nil, fmt.Errorf("command family %q declares no commands", decl.Family)
		}

		names := make(map[string]Identifier, len(decl.Commands))
		ids := make([]Identifier, 0, len(decl.Commands))
		for _, entry := range decl.Commands {
			if strings.TrimSpace(entry.Name) == "" {
				return nil, fmt.Errorf("command family %q: command name is required", decl.Family)
			}
			if strings.TrimSpace(entry.Wire) == "" {
				return nil, fmt.Errorf("command %s/%s: wire value is required", decl.Family, entry.Name)
			}
			if _, exists := names[entry.Name]; exists {
				return nil, fmt.Errorf("command %s/%s declared twice", decl.Family, entry.Name)
			}
			if other, exists := v.byWire[entry.Wire]; exists {
				return nil, fmt.Errorf("wire value %q shared by %s and %s/%s", entry.Wire, other, decl.Family, entry.Name)
			}
			id := Identifier{family: decl.Family, name: entry.Name, wire: entry.Wire}
			names[entry.Name] = id
			v.byWire[entry.Wire] = id
			ids = append(ids, id)
		}

		v.families = append(v.families, decl.Family)
		v.byFamily[decl.Family] = ids
		v.byName[decl.Family] = names
	}
	return v, nil
}

// MustNew is New for package-level declarations; it panics on invalid input.
func MustNew(decls ...Declaration) *Vocabulary {
	v, err := New(decls...)
	if err != nil {
		panic(fmt.Sprintf("invalid command vocabulary: %v", err))
	}
	return v
}

// Resolve returns the command named name within family.
func (v *Vocabulary) Resolve(family Family, name string) (Identifier, error) {
	names, ok := v.byName[family]
	if !ok {
		return Identifier{}, apperrors.WithMetadata(
			apperrors.CodeUnknownCommand,
			fmt.Sprintf("unknown command family %q", family),
			map[string]string{"family": string(family), "name": name},
		)
	}
	id, ok := names[name]
	if !ok {
		return Identifier{}, apperrors.WithMetadata(
			apperrors.CodeUnknownCommand,
			fmt.Sprintf("unknown %s command %q", family, name),
			map[string]string{"family": string(family), "name": name},
		)
	}
	return id, nil
}

// Lookup returns the command whose wire value is wire.
func (v *Vocabulary) Lookup(wire string) (Identifier, error) {
	id, ok := v.byWire[wire]
	if !ok {
		return Identifier{}, apperrors.WithMetadata(
			apperrors.CodeUnknownCommand,
			fmt.Sprintf("unknown wire command %q", wire),
			map[string]string{"wire": wire},
		)
	}
	return id, nil
}

// All returns the commands of family in declaration order. The slice is a
// fresh copy on every call; an unknown family yields nil.
func (v *Vocabulary) All(family Family) []Identifier {
	ids := v.byFamily[family]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Identifier, len(ids))
	copy(out, ids)
	return out
}

// Families returns the declared families in declaration order.
func (v *Vocabulary) Families() []Family {
	out := make([]Family, len(v.families))
	copy(out, v.families)
	return out
}
