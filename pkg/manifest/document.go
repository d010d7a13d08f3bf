package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/picshelf/pkg/safeio"
)

// Load reads the document at path, resolved inside root.
func Load(root, path string) (string, error) {
	data, err := safeio.ReadFileContained(root, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Save replaces the document at path with content via temp file and rename.
func Save(root, path, content string) error {
	p, err := safeio.ContainedPath(root, path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := safeio.WriteFileAtomic(p, []byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
