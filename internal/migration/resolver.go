package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

// ErrResolution indicates the migration source could not be read.
var ErrResolution = errors.New("migration resolution failed")

// Resolver discovers the migrations available to a Manager.
// Implementations return migrations sorted ascending by version and
// must return every entry when two files share a version.
type Resolver interface {
	Resolve() ([]Migration, error)
}

// filenamePattern matches migration scripts:
//
//	V{version}__{description}.sql  (e.g., V2__create_trips.sql, V1.1__seed.sql)
//	{version}_{description}.sql    (e.g., 20240101120000_create_users.sql)
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by FSResolver
	`^[Vv]?(\d+(?:\.\d+)*)__?(.+)\.sql$`,
)

// FSResolver resolves migration scripts from a directory tree of an fs.FS.
type FSResolver struct {
	fsys     fs.FS
	root     string
	location string
}

// NewFSResolver returns a resolver scanning root (recursively) inside fsys.
// Use it with embed.FS to ship migrations inside the binary.
func NewFSResolver(fsys fs.FS, root string) *FSResolver {
	if root == "" {
		root = "."
	}

	return &FSResolver{fsys: fsys, root: root, location: root}
}

// NewDirResolver returns a resolver scanning the given directory on disk.
func NewDirResolver(dir string) *FSResolver {
	return &FSResolver{fsys: os.DirFS(dir), root: ".", location: dir}
}

// Location describes where the resolver looks, for messages and logs.
func (r *FSResolver) Location() string {
	return r.location
}

// Resolve walks the source location and returns the migrations it finds,
// sorted by version. Files not matching the naming pattern are skipped.
func (r *FSResolver) Resolve() ([]Migration, error) {
	info, err := fs.Stat(r.fsys, r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading migrations location %s: %w", ErrResolution, r.location, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: migrations location %s is not a directory", ErrResolution, r.location)
	}

	var migrations []Migration

	err = fs.WalkDir(r.fsys, r.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		m, ok, err := r.readMigration(p, d.Name())
		if err != nil || !ok {
			return err
		}

		migrations = append(migrations, m)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %w", ErrResolution, r.location, err)
	}

	return Sort(migrations), nil
}

// readMigration parses the filename and loads the script. ok is false for
// files that are not migrations.
func (r *FSResolver) readMigration(p, name string) (Migration, bool, error) {
	matches := filenamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, false, nil
	}

	version, err := ParseVersion(matches[1])
	if err != nil {
		return Migration{}, false, fmt.Errorf("file %s: %w", p, err)
	}

	data, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return Migration{}, false, fmt.Errorf("reading migration file %s: %w", p, err)
	}

	script := strings.TrimSpace(string(data))

	return Migration{
		Version:     version,
		Description: strings.ReplaceAll(matches[2], "_", " "),
		Script:      script,
		Checksum:    ComputeChecksum(script),
		Source:      relativeTo(r.root, p),
	}, true, nil
}

func relativeTo(root, p string) string {
	if root == "." {
		return p
	}

	return strings.TrimPrefix(p, path.Clean(root)+"/")
}
