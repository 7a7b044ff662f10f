package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		NameField: "Name",
		Columns:   []string{"HP", "Attack", "Defense"},
		Rows: []Row{
			{Name: "Pikachu", Values: []float64{35, 55, 40}},
			{Name: "Bulbasaur", Values: []float64{45, 49, 49}},
		},
	}
}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore(testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, store.Width())
	assert.Equal(t, []string{"HP", "Attack", "Defense"}, store.Columns())

	attrs, ok := store.Get("Pikachu")
	require.True(t, ok)
	assert.Equal(t, Attributes{35, 55, 40}, attrs)
}

func TestMemoryStore_GetIsExact(t *testing.T) {
	store, err := NewMemoryStore(testSnapshot())
	require.NoError(t, err)

	for _, name := range []string{"pikachu", "PIKACHU", " Pikachu", "Pikachu ", "Pikachuu", ""} {
		_, ok := store.Get(name)
		assert.False(t, ok, "name %q should not resolve", name)
	}
}

func TestMemoryStore_Immutable(t *testing.T) {
	snap := testSnapshot()
	store, err := NewMemoryStore(snap)
	require.NoError(t, err)

	// Mutating the source snapshot does not leak into the store.
	snap.Rows[0].Values[0] = 999
	snap.Columns[0] = "changed"

	attrs, _ := store.Get("Pikachu")
	assert.Equal(t, 35.0, attrs[0])
	assert.Equal(t, "HP", store.Columns()[0])

	// Nor does mutating a returned value.
	attrs[0] = 123
	cols := store.Columns()
	cols[1] = "changed"

	again, _ := store.Get("Pikachu")
	assert.Equal(t, 35.0, again[0])
	assert.Equal(t, "Attack", store.Columns()[1])
}

func TestNewMemoryStore_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
		want   string
	}{
		{"no columns", func(s *Snapshot) { s.Columns = nil }, "no columns"},
		{"empty column", func(s *Snapshot) { s.Columns[1] = "" }, "empty column name"},
		{"duplicate column", func(s *Snapshot) { s.Columns[2] = "HP" }, "duplicate column"},
		{"name field as column", func(s *Snapshot) { s.Columns[0] = "Name" }, "name field"},
		{"empty name", func(s *Snapshot) { s.Rows[1].Name = "" }, "empty name"},
		{"duplicate name", func(s *Snapshot) { s.Rows[1].Name = "Pikachu" }, "duplicate entity"},
		{"short row", func(s *Snapshot) { s.Rows[0].Values = []float64{1, 2} }, "has 2 values, want 3"},
		{"nan value", func(s *Snapshot) { s.Rows[1].Values[0] = math.NaN() }, `"Bulbasaur" has non-finite HP`},
		{"inf value", func(s *Snapshot) { s.Rows[0].Values[2] = math.Inf(-1) }, `"Pikachu" has non-finite Defense`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			tt.mutate(snap)

			store, err := NewMemoryStore(snap)
			require.Error(t, err)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := NewMemoryStore(nil)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestMemoryStore_Snapshot(t *testing.T) {
	store, err := NewMemoryStore(testSnapshot())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, []string{"HP", "Attack", "Defense"}, snap.Columns)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "Bulbasaur", snap.Rows[0].Name)
	assert.Equal(t, "Pikachu", snap.Rows[1].Name)

	rebuilt, err := NewMemoryStore(snap)
	require.NoError(t, err)
	assert.Equal(t, store.Len(), rebuilt.Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "stats.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"name_field": "Name",
			"columns": ["HP", "Attack"],
			"rows": [
				{"name": "Charmander", "values": [39, 52]},
				{"name": "Squirtle", "values": [44, 48]}
			]
		}`), 0o644))

		store, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())

		attrs, ok := store.Get("Squirtle")
		require.True(t, ok)
		assert.Equal(t, Attributes{44, 48}, attrs)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "stats.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"columns: [HP, Attack]\n"+
				"rows:\n"+
				"  - name: Mew\n"+
				"    values: [100, 100]\n"), 0o644))

		store, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("invalid table", func(t *testing.T) {
		path := filepath.Join(dir, "dup.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"columns": ["HP"],
			"rows": [{"name": "Mew", "values": [1]}, {"name": "Mew", "values": [2]}]
		}`), 0o644))

		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("non-finite yaml values", func(t *testing.T) {
		for name, row := range map[string]string{
			"inf": "  - name: Pikachu\n    values: [.inf, 55]\n",
			"nan": "  - name: Bulbasaur\n    values: [.nan, 49]\n",
		} {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(
				"columns: [HP, Attack]\n"+
					"rows:\n"+
					"  - name: Onix\n"+
					"    values: [35, 45]\n"+row), 0o644))

			store, err := LoadFile(path)
			assert.Nil(t, store, name)
			assert.ErrorIs(t, err, ErrInvalidSnapshot, name)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}
