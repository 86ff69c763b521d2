package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// UpdateGoldenEnv rewrites golden files with the actual output when set.
const UpdateGoldenEnv = "UPDATE_GOLDEN"

// FixturePath is the path of a file under the package testdata directory.
func FixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// GoldenPath is the path of a file under testdata/golden.
func GoldenPath(name string) string {
	return filepath.Join("testdata", "golden", name)
}

// LoadFixture returns the contents of path or fails the test.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "load fixture %s", path)
	return data
}

// LoadModels decodes a JSON array of models from path.
func LoadModels[T any](t testing.TB, path string) []T {
	t.Helper()

	var models []T
	require.NoError(t, json.Unmarshal(LoadFixture(t, path), &models), "decode models from %s", path)
	return models
}

// WriteGolden stores data at path, creating parent directories.
func WriteGolden(t testing.TB, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// CompareWithGolden checks actual against the golden file at path. A
// missing golden file is written from actual, as is any golden file when
// UPDATE_GOLDEN is set.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) || os.Getenv(UpdateGoldenEnv) != "" {
		t.Logf("writing golden file %s", path)
		WriteGolden(t, path, actual)
		return
	}
	require.NoError(t, err)

	assert.Equal(t, string(expected), string(actual), "golden file %s", path)
}
