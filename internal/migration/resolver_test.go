package migration_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schemaver/internal/migration"
)

func TestDirResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		setup       func(t *testing.T) string // returns directory path
		wantErr     bool
		errContains string
		check       func(t *testing.T, ms []migration.Migration)
	}{
		{
			name: "missing directory returns resolution error",
			setup: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "nonexistent")
			},
			wantErr:     true,
			errContains: "reading migrations location",
		},
		{
			name: "file instead of directory returns resolution error",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "V1__init.sql", "SELECT 1;")

				return filepath.Join(dir, "V1__init.sql")
			},
			wantErr:     true,
			errContains: "not a directory",
		},
		{
			name: "empty directory returns empty slice",
			setup: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				assert.Empty(t, ms)
			},
		},
		{
			name: "non-matching files are skipped",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "README.md", "# readme")
				writeFile(t, dir, "notes.sql", "SELECT 1;")
				writeFile(t, dir, "Vx__bad.sql", "SELECT 1;")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				assert.Empty(t, ms)
			},
		},
		{
			name: "double underscore pattern parses version and description",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "V2__create_trips.sql", "CREATE TABLE trips (id INT);")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)
				assert.Equal(t, "2", ms[0].Version.String())
				assert.Equal(t, "create trips", ms[0].Description)
				assert.Equal(t, "V2__create_trips.sql", ms[0].Source)
				assert.Equal(t, "CREATE TABLE trips (id INT);", ms[0].Script)
			},
		},
		{
			name: "single underscore timestamp pattern works",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "20240101120000_create_posts.sql", "CREATE TABLE posts (id INT);")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)
				assert.Equal(t, "20240101120000", ms[0].Version.String())
				assert.Equal(t, "create posts", ms[0].Description)
			},
		},
		{
			name: "results are sorted numerically",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "V10__ten.sql", "SELECT 10;")
				writeFile(t, dir, "V2__two.sql", "SELECT 2;")
				writeFile(t, dir, "V1.5__one_five.sql", "SELECT 15;")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				assert.Equal(t, []string{"1.5", "2", "10"}, versions(t, ms))
			},
		},
		{
			name: "subdirectories are scanned",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024"), 0o755))
				writeFile(t, dir, "V1__root.sql", "SELECT 1;")
				writeFile(t, filepath.Join(dir, "2024"), "V2__nested.sql", "SELECT 2;")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 2)
				assert.Equal(t, "2024/V2__nested.sql", ms[1].Source)
			},
		},
		{
			name: "duplicate versions are all returned",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "V1__first.sql", "SELECT 1;")
				writeFile(t, dir, "V001__first_again.sql", "SELECT 1;")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 2)
				assert.True(t, ms[0].Version.Equal(ms[1].Version))
			},
		},
		{
			name: "content is trimmed before checksum",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				writeFile(t, dir, "V1__test.sql", "  SELECT 1;  \n")

				return dir
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)
				assert.Equal(t, "SELECT 1;", ms[0].Script)
				assert.Equal(t, migration.ComputeChecksum("SELECT 1;"), ms[0].Checksum)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := tt.setup(t)
			ms, err := migration.NewDirResolver(dir).Resolve()

			if tt.wantErr {
				require.ErrorIs(t, err, migration.ErrResolution)
				assert.Contains(t, err.Error(), tt.errContains)

				return
			}

			require.NoError(t, err)

			if tt.check != nil {
				tt.check(t, ms)
			}
		})
	}
}

func TestFSResolver_Resolve_embeddedLayout(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"db/migrations/V1__create_users.sql": {Data: []byte("CREATE TABLE users (id INT);")},
		"db/migrations/V2__create_trips.sql": {Data: []byte("CREATE TABLE trips (id INT);")},
		"db/other/V9__ignored.sql":           {Data: []byte("SELECT 9;")},
	}

	r := migration.NewFSResolver(fsys, "db/migrations")
	ms, err := r.Resolve()

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, versions(t, ms))
	assert.Equal(t, "V1__create_users.sql", ms[0].Source)
	assert.Equal(t, "db/migrations", r.Location())
}

func TestFSResolver_Resolve_missingRoot(t *testing.T) {
	t.Parallel()

	_, err := migration.NewFSResolver(fstest.MapFS{}, "db/migrations").Resolve()

	require.ErrorIs(t, err, migration.ErrResolution)
}

func TestFSResolver_Resolve_versionOverflow(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"V99999999999999999999999__huge.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := migration.NewFSResolver(fsys, ".").Resolve()

	require.ErrorIs(t, err, migration.ErrResolution)
	require.ErrorIs(t, err, migration.ErrInvalidVersion)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
