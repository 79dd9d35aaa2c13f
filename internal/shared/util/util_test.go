package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePatternPath(t *testing.T) {
	assert.Equal(t, "", NormalizePatternPath("."))
	assert.Equal(t, "", NormalizePatternPath("  "))
	assert.Equal(t, "app/Models", NormalizePatternPath(" ./app/Models/ "))
	assert.Equal(t, "database/migrations", NormalizePatternPath(`database\seeders\..\migrations`))
}

func TestHasPathPrefix(t *testing.T) {
	migrations := "database/migrations"
	tests := []struct {
		file string
		want bool
	}{
		{"database/migrations", true},
		{"database/migrations/2024_01_01_create_users.php", true},
		{`database\migrations\2024_01_01_create_users.php`, true},
		{"./database/migrations/old/Legacy.php", true},
		{"database/migrations_archive/Old.php", false},
		{"database/seeders/UserSeeder.php", false},
		{"database", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPathPrefix(tt.file, migrations), tt.file)
	}

	assert.True(t, HasPathPrefix("/srv/shop/database/migrations/x.php", "/srv/shop/database/migrations/"))
	assert.True(t, HasPathPrefix("", "."), "the project root matches itself")
	assert.False(t, HasPathPrefix("app/User.php", ""))
}

func TestSortedStringKeys(t *testing.T) {
	psr4 := map[string][]string{
		`Tests\`:    {"tests/"},
		`App\`:      {"app/"},
		`Database\`: {"database/"},
	}
	assert.Equal(t, []string{`App\`, `Database\`, `Tests\`}, SortedStringKeys(psr4))
	assert.Empty(t, SortedStringKeys(map[string]bool{}))
}

func TestWriteFileWithDirs(t *testing.T) {
	report := filepath.Join(t.TempDir(), "build", "reports", "microscope.sarif")
	require.NoError(t, WriteFileWithDirs(report, []byte(`{"runs":[]}`), 0o644))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"runs":[]}`, string(data))
}

func TestWriteFileAtomicReplacesSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Invoice.php")
	require.NoError(t, os.WriteFile(file, []byte("<?php\nnamespace App\\Billings;\n"), 0o640))

	fixed := "<?php\nnamespace App\\Billing;\n"
	require.NoError(t, WriteFileAtomic(file, []byte(fixed), 0o640))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, fixed, string(data))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file may be left behind")
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "gone", "A.php"), []byte("x"), 0o644)
	assert.Error(t, err)
}
