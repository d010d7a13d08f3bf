// Package gallery ties the asset installer, the manifest patcher and the
// publisher together into the add, list and check operations.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fulmenhq/picshelf/internal/gitctx"
	"github.com/fulmenhq/picshelf/pkg/assets"
	"github.com/fulmenhq/picshelf/pkg/config"
	"github.com/fulmenhq/picshelf/pkg/exitcode"
	"github.com/fulmenhq/picshelf/pkg/logger"
	"github.com/fulmenhq/picshelf/pkg/manifest"
	"github.com/fulmenhq/picshelf/pkg/publish"
)

// ErrDocumentWrite wraps failures writing the patched document.
var ErrDocumentWrite = errors.New("failed to write document")

// Publisher is the part of publish.Publisher the gallery needs.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) publish.Result
}

// Options adjusts how a Service runs.
type Options struct {
	// NoOp computes and reports every change without writing or calling git.
	NoOp bool
	// Out receives operator-facing progress lines; nil discards.
	Out io.Writer
	// Publisher replaces the git-backed publisher built from config.
	Publisher Publisher
}

// Service runs gallery operations against one configured root.
type Service struct {
	cfg       *config.Config
	installer *assets.Installer
	patcher   *manifest.Patcher
	publisher Publisher
	noOp      bool
	out       io.Writer
}

// New builds a Service from resolved configuration.
func New(cfg *config.Config, opts Options) (*Service, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	installer, err := assets.NewInstaller(cfg.Root, cfg.Assets.Dir)
	if err != nil {
		return nil, exitcode.WithCode(exitcode.ConfigError, err)
	}
	patcher, err := manifest.NewPatcher(manifest.Declaration{
		Keyword:    cfg.Manifest.Keyword,
		Identifier: cfg.Manifest.Identifier,
		Indent:     cfg.Manifest.Indent,
	})
	if err != nil {
		return nil, exitcode.WithCode(exitcode.ConfigError, err)
	}

	pub := opts.Publisher
	if pub == nil {
		p, err := publish.New(publish.NewCLI(cfg.Root), publish.Options{
			Root:            cfg.Root,
			Push:            cfg.Publish.Push,
			MessageTemplate: cfg.Publish.MessageTemplate,
			Progress:        out,
		})
		if err != nil {
			return nil, exitcode.WithCode(exitcode.ConfigError, err)
		}
		pub = p
	}

	return &Service{
		cfg:       cfg,
		installer: installer,
		patcher:   patcher,
		publisher: pub,
		noOp:      opts.NoOp,
		out:       out,
	}, nil
}

func (s *Service) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

// AddRequest names the image to add and an optional commit message.
type AddRequest struct {
	Source  string
	Message string
}

// AddResult describes what Add did, or would do under no-op.
type AddResult struct {
	Filename string `json:"filename"`
	// Destination is the root-relative asset path.
	Destination string `json:"destination"`
	Document    string `json:"document"`
	// AlreadyListed is set when the manifest held the name before this run.
	AlreadyListed   bool `json:"already_listed"`
	ManifestUpdated bool `json:"manifest_updated"`
	AssetReplaced   bool `json:"asset_replaced"`
	DryRun          bool `json:"dry_run"`
	// Publish is nil when publishing was disabled or skipped by no-op.
	Publish *publish.Result `json:"-"`
}

// Add installs the source image and appends it to the manifest, then publishes
// when enabled. Publish problems are reported but never returned as errors.
func (s *Service) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	name, err := s.installer.Inspect(req.Source)
	if err != nil {
		return nil, err
	}
	if err := manifest.ValidateFilename(name); err != nil {
		return nil, err
	}

	docPath := s.cfg.Document.Path
	doc, err := manifest.Load(s.cfg.Root, docPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded document", logger.String("path", s.cfg.DocumentPath()), logger.Int("bytes", len(doc)))
	if _, err := s.patcher.Locate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", docPath, err)
	}

	res := &AddResult{
		Filename:    name,
		Destination: s.installer.RelPath(name),
		Document:    docPath,
		DryRun:      s.noOp,
	}

	listed, err := s.patcher.Contains(doc, name)
	if err != nil {
		// Bodies with spreads or expressions cannot be checked for duplicates.
		logger.Debug("Duplicate check skipped", logger.Err(err))
	}
	res.AlreadyListed = listed

	updated := doc
	switch {
	case listed && s.cfg.Manifest.Duplicates == config.DuplicatesError:
		return nil, fmt.Errorf("%w: %s", manifest.ErrDuplicateEntry, name)
	case listed && s.cfg.Manifest.Duplicates == config.DuplicatesSkip:
		logger.Warn("Image already listed; manifest left unchanged", logger.String("image", name), logger.String("document", docPath))
	default:
		if updated, err = s.patcher.AppendEntry(doc, name); err != nil {
			return nil, err
		}
		if err := s.patcher.Verify(doc, updated, name); err != nil {
			return nil, err
		}
		res.ManifestUpdated = true
	}

	res.AssetReplaced = s.installer.Exists(name)

	if s.noOp {
		s.printf("Would copy '%s' to '%s/' folder", name, s.cfg.Assets.Dir)
		if res.ManifestUpdated {
			s.printf("Would add '%s' to %s", name, docPath)
		} else {
			s.printf("'%s' is already listed in %s", name, docPath)
		}
		return res, nil
	}

	if _, err := s.installer.Install(req.Source); err != nil {
		return nil, err
	}
	s.printf("✓ Copied '%s' to '%s/' folder", name, s.cfg.Assets.Dir)

	if res.ManifestUpdated {
		if err := manifest.Save(s.cfg.Root, docPath, updated); err != nil {
			if !res.AssetReplaced {
				if rmErr := s.installer.Remove(name); rmErr != nil {
					logger.Warn("Could not remove copied asset", logger.String("image", name), logger.Err(rmErr))
				}
			}
			return nil, fmt.Errorf("%w: %w", ErrDocumentWrite, err)
		}
		s.printf("✓ Added '%s' to %s", name, docPath)
	} else {
		s.printf("ℹ '%s' is already listed in %s", name, docPath)
	}

	if !s.cfg.Publish.Enabled {
		s.printf("\nDone! Your image has been added successfully.")
		return res, nil
	}

	s.printf("")
	pr := s.publisher.Publish(ctx, publish.Request{
		Filename: name,
		Paths:    []string{res.Destination, docPath},
		Message:  req.Message,
	})
	res.Publish = &pr
	s.reportPublish(pr)
	return res, nil
}

func (s *Service) reportPublish(r publish.Result) {
	if !r.OK() && r.Outcome != publish.OutcomeNothingToCommit && r.Outcome != publish.OutcomeSkipped {
		logger.Warn("Publish did not complete", logger.String("outcome", r.Outcome.String()), logger.Err(r.Err))
	}

	switch r.Outcome {
	case publish.OutcomeSkipped:
		s.printf("ℹ Not a git repository; skipping publish. Initialize one with 'git init'.")
	case publish.OutcomeStageFailed:
		s.printf("✗ Failed to add files to git: %v", r.Err)
	case publish.OutcomeNothingToCommit:
		s.printf("  ℹ No changes to commit (file may already be in repository)")
	case publish.OutcomeCommitFailed:
		s.printf("✗ Failed to commit changes: %v", r.Err)
	case publish.OutcomePushFailed:
		s.printf("\nℹ️  Changes committed locally but not pushed.")
		s.printf("   Run 'git push' manually or check your remote repository settings.")
	case publish.OutcomeCommitted:
		s.printf("✓ Committed%s (push disabled)", describeRepo(r.Repo))
	case publish.OutcomePublished:
		s.printf("\n✅ Successfully published%s!", describeRepo(r.Repo))
	}
}

func describeRepo(repo *gitctx.RepoContext) string {
	if repo == nil || repo.GitSHA == "" {
		return ""
	}
	if repo.Branch == "" {
		return " " + repo.ShortSHA()
	}
	return fmt.Sprintf(" %s on %s", repo.ShortSHA(), repo.Branch)
}
