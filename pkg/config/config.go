package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/picshelf/pkg/exitcode"
	"github.com/fulmenhq/picshelf/pkg/safeio"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// DuplicatePolicy decides what happens when an image is already listed.
type DuplicatePolicy string

const (
	// DuplicatesSkip installs the asset but leaves the manifest unchanged.
	DuplicatesSkip  DuplicatePolicy = "skip"
	DuplicatesAllow DuplicatePolicy = "allow"
	// DuplicatesError aborts before anything is written.
	DuplicatesError DuplicatePolicy = "error"
)

// ParseDuplicatePolicy accepts skip, allow or error (case-insensitive).
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DuplicatesSkip, DuplicatesAllow, DuplicatesError:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicates policy %q (want skip, allow or error)", s)
	}
}

// Config holds all configuration for picshelf
type Config struct {
	Assets   AssetsConfig   `mapstructure:"assets"`
	Document DocumentConfig `mapstructure:"document"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Publish  PublishConfig  `mapstructure:"publish"`

	// Root is the absolute working root every path is resolved against.
	Root string `mapstructure:"-"`
	// Files lists the config files that were merged, lowest precedence first.
	Files []string `mapstructure:"-"`
}

// AssetsConfig locates the image folder
type AssetsConfig struct {
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
}

// DocumentConfig locates the page holding the manifest
type DocumentConfig struct {
	Path string `mapstructure:"path"`
}

// ManifestConfig describes the list declaration to edit
type ManifestConfig struct {
	Keyword    string          `mapstructure:"keyword"`
	Identifier string          `mapstructure:"identifier"`
	Indent     string          `mapstructure:"indent"`
	Duplicates DuplicatePolicy `mapstructure:"duplicates"`
}

// PublishConfig controls the git pipeline
type PublishConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Push            bool   `mapstructure:"push"`
	MessageTemplate string `mapstructure:"message_template"`
}

var defaultConfig = Config{
	Assets: AssetsConfig{
		Dir:     "images",
		Pattern: "*",
	},
	Document: DocumentConfig{
		Path: "index.html",
	},
	Manifest: ManifestConfig{
		Keyword:    "const",
		Identifier: "images",
		Indent:     "      ",
		Duplicates: DuplicatesSkip,
	},
	Publish: PublishConfig{
		Enabled:         true,
		Push:            true,
		MessageTemplate: "Add image: {{{filename}}}",
	},
}

// Default returns a copy of the built-in defaults.
func Default() Config {
	return defaultConfig
}

// ProjectFiles are searched in the root, first match wins.
var ProjectFiles = []string{
	".picshelf.yaml",
	".picshelf.yml",
	"picshelf.yaml",
	"picshelf.yml",
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"assets-dir": "assets.dir",
	"document":   "document.path",
	"duplicates": "manifest.duplicates",
	"publish":    "publish.enabled",
	"push":       "publish.push",
}

// Options selects where configuration is read from.
type Options struct {
	// Root defaults to the current directory.
	Root string
	// File replaces the project file search when set.
	File string
	// Flags are bound for every name in FlagKeys that they define.
	Flags *pflag.FlagSet
}

// Load resolves configuration from defaults, the user config file, the project
// file, PICSHELF_* environment variables and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return nil, configError(err)
	}

	v := viper.New()
	setDefaults(v)

	var files []string
	if userFile, ok := UserConfigFile(); ok {
		files = append(files, userFile)
	}
	projectFile, err := findProjectFile(root, opts.File)
	if err != nil {
		return nil, configError(err)
	}
	if projectFile != "" {
		files = append(files, projectFile)
	}
	for _, f := range files {
		if err := mergeFile(v, f); err != nil {
			return nil, configError(err)
		}
	}

	v.SetEnvPrefix("PICSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, configError(fmt.Errorf("bind flag --%s: %w", name, err))
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, configError(fmt.Errorf("error unmarshaling config: %v", err))
	}
	config.Root = root
	config.Files = files

	if err := config.Validate(); err != nil {
		return nil, configError(err)
	}
	return &config, nil
}

// Validate checks values that may come from env or flags and so bypass the schema.
func (c *Config) Validate() error {
	policy, err := ParseDuplicatePolicy(string(c.Manifest.Duplicates))
	if err != nil {
		return err
	}
	c.Manifest.Duplicates = policy

	for name, p := range map[string]*string{"assets.dir": &c.Assets.Dir, "document.path": &c.Document.Path} {
		if strings.TrimSpace(*p) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
		clean, err := safeio.CleanUserPath(*p)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if c.Root != "" {
			if _, err := safeio.ContainedPath(c.Root, clean); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		*p = clean
	}
	if c.Assets.Pattern == "" {
		c.Assets.Pattern = defaultConfig.Assets.Pattern
	}
	if c.Publish.MessageTemplate == "" {
		c.Publish.MessageTemplate = defaultConfig.Publish.MessageTemplate
	}
	return nil
}

// DocumentPath returns the absolute path of the manifest document.
func (c *Config) DocumentPath() string {
	return filepath.Join(c.Root, c.Document.Path)
}

// UserConfigFile returns the per-user config file when one exists.
func UserConfigFile() (string, bool) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(dir, "picshelf", name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("assets.dir", defaultConfig.Assets.Dir)
	v.SetDefault("assets.pattern", defaultConfig.Assets.Pattern)
	v.SetDefault("document.path", defaultConfig.Document.Path)
	v.SetDefault("manifest.keyword", defaultConfig.Manifest.Keyword)
	v.SetDefault("manifest.identifier", defaultConfig.Manifest.Identifier)
	v.SetDefault("manifest.indent", defaultConfig.Manifest.Indent)
	v.SetDefault("manifest.duplicates", string(defaultConfig.Manifest.Duplicates))
	v.SetDefault("publish.enabled", defaultConfig.Publish.Enabled)
	v.SetDefault("publish.push", defaultConfig.Publish.Push)
	v.SetDefault("publish.message_template", defaultConfig.Publish.MessageTemplate)
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %q is not a directory", root)
	}
	return abs, nil
}

func findProjectFile(root, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	for _, name := range ProjectFiles {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- config path chosen by the operator
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := ValidateConfig(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := v.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

func configError(err error) error {
	return exitcode.WithCode(exitcode.ConfigError, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
}
