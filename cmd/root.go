/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/picshelf/internal/gallery"
	"github.com/fulmenhq/picshelf/internal/ops"
	"github.com/fulmenhq/picshelf/pkg/buildinfo"
	"github.com/fulmenhq/picshelf/pkg/config"
	"github.com/fulmenhq/picshelf/pkg/exitcode"
	"github.com/fulmenhq/picshelf/pkg/logger"
	"github.com/spf13/cobra"
)

// ErrMissingArgument is returned when no image path is given.
var ErrMissingArgument = errors.New("missing argument: image file path is required")

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "picshelf [flags] <image-file-path> [commit-message]",
		Short: "Add an image to a static gallery page and publish it",
		Long: `Picshelf copies an image into the site's images folder, appends its file name
to the "const images = [...]" list in index.html and, inside a git repository,
commits and pushes both files.

Examples:
   picshelf photo.jpg                         # Add and publish with the default message
   picshelf photo.jpg "Add vacation photo"    # Add and publish with a custom message
   picshelf --publish=false photo.jpg         # Add without touching git
   picshelf --no-op photo.jpg                 # Show what would change
   picshelf list                              # Show manifest entries
   picshelf check                             # Find dangling entries and orphaned files`,
		Args:             addArgs,
		RunE:             runAdd,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) { initializeLogger(cmd) },
	}

	// Add global flags
	pf := cmd.PersistentFlags()
	pf.String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	pf.Bool("json", false, "Output logs in JSON format")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Bool("no-op", false, "Show planned changes without writing files or calling git")
	pf.String("root", ".", "Site root containing the document and assets folder")
	pf.String("config", "", "Config file (default: .picshelf.yaml in the root)")
	pf.String("assets-dir", config.Default().Assets.Dir, "Assets folder, relative to the root")
	pf.String("document", config.Default().Document.Path, "Document holding the image list, relative to the root")

	// Add-only flags
	f := cmd.Flags()
	f.Bool("publish", config.Default().Publish.Enabled, "Stage, commit and push the image and document")
	f.Bool("push", config.Default().Publish.Push, "Push after committing")
	f.String("duplicates", string(config.Default().Manifest.Duplicates), "Policy for images already listed (skip|allow|error)")

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("picshelf {{.Version}}\n")

	// Grouped help by command group (Gallery → Support)
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		if c != cmd {
			desc := c.Long
			if desc == "" {
				desc = c.Short
				if r, ok := ops.GetRegistry().GetCommand(c.Name()); ok {
					desc = r.Description
				}
			}
			c.Println(desc)
			c.Println()
			c.Print(c.UsageString())
			return
		}
		reg := ops.GetRegistry()
		c.Println(c.Long)
		c.Println()
		titles := map[ops.CommandGroup]string{
			ops.GroupGallery: "Gallery Commands:",
			ops.GroupSupport: "Support Commands:",
		}
		for _, g := range ops.Groups() {
			c.Println(titles[g])
			for _, r := range reg.GetCommandsByGroup(g) {
				c.Printf("  %-12s %s\n", r.Name, r.Description)
			}
			c.Println()
		}
		c.Print(c.UsageString())
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newCheckCommand())
}

// rootCmd represents the base command
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
	_ = ops.RegisterCommand("add", ops.GroupGallery, "Add an image (default action: picshelf <image>)")
}

// Execute runs the root command and exits with the code matching the error.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitcode.FromError(err)
		logger.Error("Command execution failed", logger.Err(err), logger.String("exit", exitcode.String(code)))
		os.Exit(code)
	}
}

func addArgs(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0:
		return ErrMissingArgument
	case len(args) > 2:
		return fmt.Errorf("accepts at most 2 args (image path and commit message), received %d", len(args))
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	// Usage is only useful for argument errors, which cobra reports before RunE.
	cmd.SilenceUsage = true

	svc, err := newService(cmd)
	if err != nil {
		return err
	}

	req := gallery.AddRequest{Source: args[0]}
	if len(args) > 1 {
		req.Message = args[1]
	}
	res, err := svc.Add(cmd.Context(), req)
	if err != nil {
		return err
	}
	logger.Debug("Image added",
		logger.String("image", res.Filename),
		logger.Bool("manifest_updated", res.ManifestUpdated),
		logger.Bool("dry_run", res.DryRun))
	return nil
}

// loadConfig resolves configuration from the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	root, _ := cmd.Flags().GetString("root")
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.Options{Root: root, File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	for _, f := range cfg.Files {
		logger.Debug("Loaded config file", logger.String("path", f))
	}
	return cfg, nil
}

func newService(cmd *cobra.Command) (*gallery.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	noOp, _ := cmd.Flags().GetBool("no-op")
	return gallery.New(cfg, gallery.Options{NoOp: noOp, Out: cmd.OutOrStdout()})
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	cfg := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "picshelf",
		NoOp:      noOp,
	}

	if err := logger.Initialize(cfg); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
