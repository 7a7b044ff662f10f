package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"stats.json", FormatJSON, false},
		{"/srv/model.JSON", FormatJSON, false},
		{"stats.yaml", FormatYAML, false},
		{"stats.yml", FormatYAML, false},
		{"model.pickle", "", true},
		{"stats", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var d doc
		require.NoError(t, Decode(strings.NewReader(`{"name":"Pikachu","values":[35,55]}`), FormatJSON, &d))
		assert.Equal(t, doc{Name: "Pikachu", Values: []float64{35, 55}}, d)
	})

	t.Run("yaml", func(t *testing.T) {
		var d doc
		require.NoError(t, Decode(strings.NewReader("name: Bulbasaur\nvalues: [45, 49]\n"), FormatYAML, &d))
		assert.Equal(t, doc{Name: "Bulbasaur", Values: []float64{45, 49}}, d)
	})

	t.Run("json unknown field", func(t *testing.T) {
		var d doc
		assert.Error(t, Decode(strings.NewReader(`{"name":"x","weights":[1]}`), FormatJSON, &d))
	})

	t.Run("yaml unknown field", func(t *testing.T) {
		var d doc
		assert.Error(t, Decode(strings.NewReader("name: x\nweights: [1]\n"), FormatYAML, &d))
	})
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Mew","values":[100]}`), 0o644))

	var d doc
	require.NoError(t, ReadFile(path, &d))
	assert.Equal(t, "Mew", d.Name)

	err := ReadFile(filepath.Join(dir, "missing.json"), &d)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [\n"), 0o644))
	err = ReadFile(bad, &d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode snapshot")
}
