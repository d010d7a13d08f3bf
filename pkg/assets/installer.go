// Package assets copies image files into the site's managed assets directory.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/picshelf/pkg/safeio"
)

// DefaultDir is the assets directory used when none is configured.
const DefaultDir = "images"

// ErrSourceNotFound is returned when the image to install does not exist.
var ErrSourceNotFound = errors.New("source image not found")

// InstallError reports a filesystem failure while installing an asset.
type InstallError struct {
	Op   string
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Installer places assets under <root>/<dir>.
type Installer struct {
	dir    string
	absDir string
}

// NewInstaller resolves dir inside root. dir must not escape root.
func NewInstaller(root, dir string) (*Installer, error) {
	if dir == "" {
		dir = DefaultDir
	}
	clean, err := safeio.CleanUserPath(dir)
	if err != nil {
		return nil, fmt.Errorf("assets directory %q: %w", dir, err)
	}
	abs, err := safeio.ContainedPath(root, clean)
	if err != nil {
		return nil, fmt.Errorf("assets directory %q: %w", dir, err)
	}
	return &Installer{dir: clean, absDir: abs}, nil
}

// Dir returns the absolute assets directory.
func (i *Installer) Dir() string { return i.absDir }

// RelPath returns the root-relative, slash separated path of an asset.
func (i *Installer) RelPath(filename string) string {
	return path.Join(i.dir, filename)
}

// Path returns the absolute destination path of an asset.
func (i *Installer) Path(filename string) string {
	return filepath.Join(i.absDir, filename)
}

// Inspect checks that source is an existing regular file and returns its
// base name, which becomes the image reference.
func (i *Installer) Inspect(source string) (string, error) {
	st, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return "", &InstallError{Op: "stat", Path: source, Err: err}
	}
	if !st.Mode().IsRegular() {
		return "", &InstallError{Op: "stat", Path: source, Err: errors.New("not a regular file")}
	}
	return filepath.Base(source), nil
}

// Exists reports whether an asset with this name is already installed.
func (i *Installer) Exists(filename string) bool {
	st, err := os.Stat(i.Path(filename))
	return err == nil && st.Mode().IsRegular()
}

// Install copies source into the assets directory, creating it if needed, and
// returns the destination path. Contents, permission bits and modification time
// are carried over; an existing asset of the same name is replaced.
func (i *Installer) Install(source string) (string, error) {
	name, err := i.Inspect(source)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.absDir, 0o755); err != nil {
		return "", &InstallError{Op: "mkdir", Path: i.absDir, Err: err}
	}
	dest := i.Path(name)
	if err := safeio.CopyFile(source, dest); err != nil {
		return "", &InstallError{Op: "copy", Path: dest, Err: err}
	}
	return dest, nil
}

// Remove deletes an installed asset. A missing asset is not an error.
func (i *Installer) Remove(filename string) error {
	err := os.Remove(i.Path(filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &InstallError{Op: "remove", Path: i.Path(filename), Err: err}
	}
	return nil
}

// List returns installed asset names matching a doublestar pattern, sorted.
// A missing assets directory yields an empty list.
func (i *Installer) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid assets pattern %q", pattern)
	}
	if _, err := os.Stat(i.absDir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	fsys := os.DirFS(i.absDir)
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &InstallError{Op: "list", Path: i.absDir, Err: err}
	}
	var names []string
	for _, m := range matches {
		// Temp files from an interrupted copy are not assets.
		if base := path.Base(m); len(base) > 0 && base[0] == '.' {
			continue
		}
		names = append(names, m)
	}
	sort.Strings(names)
	return names, nil
}
