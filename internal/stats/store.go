// Package stats holds the attribute table: per-entity numeric stats looked up
// by exact name.
//
// The table is loaded once at startup from a file or Redis snapshot into a
// MemoryStore and is never mutated afterwards, so it is safe for concurrent
// use without locking.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Attributes is the ordered stat vector of one entity, name excluded.
type Attributes []float64

// Store is the read-only lookup used by the battle resolver.
type Store interface {
	// Get returns the attributes stored under name. Names are matched
	// exactly, including case.
	Get(name string) (Attributes, bool)

	// Columns returns the attribute names in vector order.
	Columns() []string

	// Width is len(Columns()).
	Width() int

	// Len is the number of entities.
	Len() int
}

// ErrInvalidSnapshot wraps every structural problem found while building a
// store.
var ErrInvalidSnapshot = errors.New("invalid attribute snapshot")

// Snapshot is the serialized form of the attribute table.
type Snapshot struct {
	// NameField records which source column held the entity name. It is
	// informational and must not appear in Columns.
	NameField string   `json:"name_field,omitempty" yaml:"name_field,omitempty"`
	Columns   []string `json:"columns" yaml:"columns"`
	Rows      []Row    `json:"rows" yaml:"rows"`
}

// Row is one entity in a Snapshot.
type Row struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

// MemoryStore is an immutable in-memory Store.
type MemoryStore struct {
	columns []string
	rows    map[string]Attributes
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore validates s and builds a store from it.
//
// It fails when columns are empty or repeated, when the name field is listed
// as a column, or when a row has an empty or duplicate name, the wrong
// number of values, or a NaN or infinite value.
func NewMemoryStore(s *Snapshot) (*MemoryStore, error) {
	if s == nil || len(s.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidSnapshot)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrInvalidSnapshot)
		}
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSnapshot, c)
		}
		if s.NameField != "" && c == s.NameField {
			return nil, fmt.Errorf("%w: name field %q listed as attribute column", ErrInvalidSnapshot, c)
		}
		seen[c] = true
	}

	rows := make(map[string]Attributes, len(s.Rows))
	for i, r := range s.Rows {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: row %d has empty name", ErrInvalidSnapshot, i)
		}
		if _, dup := rows[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %q", ErrInvalidSnapshot, r.Name)
		}
		if len(r.Values) != len(s.Columns) {
			return nil, fmt.Errorf("%w: entity %q has %d values, want %d",
				ErrInvalidSnapshot, r.Name, len(r.Values), len(s.Columns))
		}
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: entity %q has non-finite %s", ErrInvalidSnapshot, r.Name, s.Columns[j])
			}
		}
		rows[r.Name] = slices.Clone(r.Values)
	}

	return &MemoryStore{
		columns: slices.Clone(s.Columns),
		rows:    rows,
	}, nil
}

// Get returns a copy of the attributes so callers cannot mutate the table.
func (m *MemoryStore) Get(name string) (Attributes, bool) {
	attrs, ok := m.rows[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(attrs), true
}

func (m *MemoryStore) Columns() []string { return slices.Clone(m.columns) }

func (m *MemoryStore) Width() int { return len(m.columns) }

func (m *MemoryStore) Len() int { return len(m.rows) }

// Snapshot returns the table in serialized form, rows sorted by name.
func (m *MemoryStore) Snapshot() *Snapshot {
	names := make([]string, 0, len(m.rows))
	for name := range m.rows {
		names = append(names, name)
	}
	slices.Sort(names)

	s := &Snapshot{Columns: m.Columns(), Rows: make([]Row, 0, len(names))}
	for _, name := range names {
		s.Rows = append(s.Rows, Row{Name: name, Values: slices.Clone(m.rows[name])})
	}
	return s
}
