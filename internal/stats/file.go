package stats

import (
	"fmt"

	"github.com/fyrsmithlabs/battled/internal/snapshot"
)

// LoadFile reads a JSON or YAML snapshot and builds a MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	var s Snapshot
	if err := snapshot.ReadFile(path, &s); err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	store, err := NewMemoryStore(&s)
	if err != nil {
		return nil, fmt.Errorf("load stats %s: %w", path, err)
	}
	return store, nil
}
