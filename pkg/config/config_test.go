package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/picshelf/pkg/exitcode"
)

// isolate keeps the developer's own user config and environment out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{
		"PICSHELF_ASSETS_DIR", "PICSHELF_DOCUMENT_PATH", "PICSHELF_MANIFEST_DUPLICATES",
		"PICSHELF_PUBLISH_ENABLED", "PICSHELF_PUBLISH_PUSH",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	return home
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("assets-dir", "images", "")
	fs.String("document", "index.html", "")
	fs.String("duplicates", "skip", "")
	fs.Bool("publish", true, "")
	fs.Bool("push", true, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	cfg, err := Load(Options{Root: root, Flags: testFlags()})
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Assets, cfg.Assets)
	assert.Equal(t, want.Document, cfg.Document)
	assert.Equal(t, want.Manifest, cfg.Manifest)
	assert.Equal(t, want.Publish, cfg.Publish)
	assert.Equal(t, root, cfg.Root)
	assert.Empty(t, cfg.Files)
	assert.Equal(t, filepath.Join(root, "index.html"), cfg.DocumentPath())
}

func TestLoadProjectFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	content := `assets:
  dir: static/photos
document:
  path: gallery.html
manifest:
  identifier: photos
  indent: "    "
  duplicates: error
publish:
  push: false
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".picshelf.yaml"), []byte(content), 0o644))

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)

	assert.Equal(t, "static/photos", cfg.Assets.Dir)
	assert.Equal(t, "gallery.html", cfg.Document.Path)
	assert.Equal(t, "photos", cfg.Manifest.Identifier)
	assert.Equal(t, "const", cfg.Manifest.Keyword)
	assert.Equal(t, "    ", cfg.Manifest.Indent)
	assert.Equal(t, DuplicatesError, cfg.Manifest.Duplicates)
	assert.True(t, cfg.Publish.Enabled)
	assert.False(t, cfg.Publish.Push)
	assert.Equal(t, []string{filepath.Join(root, ".picshelf.yaml")}, cfg.Files)
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)
	root := t.TempDir()

	userDir := filepath.Join(home, ".config", "picshelf")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("document:\n  path: user.html\npublish:\n  enabled: false\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "picshelf.yml"),
		[]byte("document:\n  path: project.html\n"), 0o644))

	cfg, err := Load(Options{Root: root, Flags: testFlags()})
	require.NoError(t, err)
	assert.Equal(t, "project.html", cfg.Document.Path, "project file beats user file")
	assert.False(t, cfg.Publish.Enabled, "user file beats defaults")
	assert.Len(t, cfg.Files, 2)

	t.Setenv("PICSHELF_DOCUMENT_PATH", "env.html")
	cfg, err = Load(Options{Root: root, Flags: testFlags()})
	require.NoError(t, err)
	assert.Equal(t, "env.html", cfg.Document.Path, "env beats files")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--document", "flag.html", "--publish=true", "--duplicates", "ALLOW"}))
	cfg, err = Load(Options{Root: root, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "flag.html", cfg.Document.Path, "flags beat env")
	assert.True(t, cfg.Publish.Enabled)
	assert.Equal(t, DuplicatesAllow, cfg.Manifest.Duplicates)
}

func TestLoadExplicitFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	other := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(other, []byte("assets:\n  dir: pics\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".picshelf.yaml"), []byte("assets:\n  dir: ignored\n"), 0o644))

	cfg, err := Load(Options{Root: root, File: other})
	require.NoError(t, err)
	assert.Equal(t, "pics", cfg.Assets.Dir)

	_, err = Load(Options{Root: root, File: filepath.Join(root, "missing.yaml")})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadErrorsAreConfigErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "asset:\n  dir: x\n"},
		{"bad duplicates", "manifest:\n  duplicates: maybe\n"},
		{"bad identifier", "manifest:\n  identifier: \"my images\"\n"},
		{"wrong type", "publish:\n  enabled: sometimes\n"},
		{"not yaml", "assets: [\n"},
		{"escaping assets dir", "assets:\n  dir: ../outside\n"},
		{"absolute document", "document:\n  path: /etc/passwd\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, ".picshelf.yaml"), []byte(tt.content), 0o644))

			_, err := Load(Options{Root: root})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))
		})
	}
}

func TestLoadRejectsMissingRoot(t *testing.T) {
	isolate(t)
	_, err := Load(Options{Root: filepath.Join(t.TempDir(), "nope")})
	assert.Equal(t, exitcode.ConfigError, exitcode.FromError(err))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Load(Options{Root: file})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadRejectsBadEnvPolicy(t *testing.T) {
	isolate(t)
	t.Setenv("PICSHELF_MANIFEST_DUPLICATES", "sometimes")
	_, err := Load(Options{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{
		"skip": DuplicatesSkip, " Allow ": DuplicatesAllow, "ERROR": DuplicatesError,
	} {
		got, err := ParseDuplicatePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDuplicatePolicy("")
	assert.Error(t, err)
}
