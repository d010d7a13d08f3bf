package gallery

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/fulmenhq/picshelf/pkg/logger"
	"github.com/fulmenhq/picshelf/pkg/manifest"
)

// Entry is one manifest item and whether its asset is installed.
type Entry struct {
	Name   string `json:"name" yaml:"name"`
	Exists bool   `json:"exists" yaml:"exists"`
}

// List returns the manifest entries in document order.
func (s *Service) List() ([]Entry, error) {
	names, err := s.entries()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, Entry{Name: n, Exists: s.installer.Exists(n)})
	}
	return out, nil
}

// Report lists consistency problems between the manifest and the assets folder.
type Report struct {
	Document   string   `json:"document" yaml:"document"`
	AssetsDir  string   `json:"assets_dir" yaml:"assets_dir"`
	Entries    int      `json:"entries" yaml:"entries"`
	Assets     int      `json:"assets" yaml:"assets"`
	Duplicates []string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	// Dangling entries have no installed asset.
	Dangling []string `json:"dangling,omitempty" yaml:"dangling,omitempty"`
	// Orphans are installed assets the manifest does not reference.
	Orphans []string `json:"orphans,omitempty" yaml:"orphans,omitempty"`
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Duplicates) == 0 && len(r.Dangling) == 0 && len(r.Orphans) == 0
}

// Check compares the manifest against the installed assets.
func (s *Service) Check() (*Report, error) {
	names, err := s.entries()
	if err != nil {
		return nil, err
	}
	files, err := s.installer.List(s.cfg.Assets.Pattern)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Document:   s.cfg.Document.Path,
		AssetsDir:  s.cfg.Assets.Dir,
		Entries:    len(names),
		Assets:     len(files),
		Duplicates: manifest.Duplicates(names),
	}

	listed := make(map[string]bool, len(names))
	for _, n := range names {
		k := norm.NFC.String(n)
		if listed[k] {
			continue
		}
		listed[k] = true
		if !s.installer.Exists(n) {
			r.Dangling = append(r.Dangling, n)
		}
	}
	for _, f := range files {
		if !listed[norm.NFC.String(f)] {
			r.Orphans = append(r.Orphans, f)
		}
	}
	return r, nil
}

func (s *Service) entries() ([]string, error) {
	doc, err := manifest.Load(s.cfg.Root, s.cfg.Document.Path)
	if err != nil {
		return nil, err
	}
	names, err := s.patcher.Entries(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Document.Path, err)
	}
	logger.Debug("Parsed manifest", logger.String("path", s.cfg.DocumentPath()), logger.Int("entries", len(names)))
	return names, nil
}
