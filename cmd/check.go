/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fulmenhq/picshelf/internal/gallery"
	"github.com/fulmenhq/picshelf/internal/ops"
	"github.com/fulmenhq/picshelf/pkg/ascii"
	"github.com/fulmenhq/picshelf/pkg/exitcode"
	"github.com/spf13/cobra"
)

// ErrCheckFailed is returned when check finds inconsistencies.
var ErrCheckFailed = errors.New("gallery check found problems")

func init() {
	_ = ops.RegisterCommand("check", ops.GroupGallery, "Report duplicate, dangling and orphaned images")
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the manifest against the assets folder",
		Long: `Compare the image list with the assets folder and report:
  - duplicates: names listed more than once
  - dangling:   listed names with no file in the assets folder
  - orphans:    files in the assets folder the list does not reference

Exits with status 3 when any problem is found.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
	cmd.Flags().String("format", "text", "Output format (text|json|yaml)")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	report, err := svc.Check()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		err = writeJSON(out, report)
	case "yaml":
		err = writeYAML(out, report)
	default:
		writeReport(out, report)
	}
	if err != nil {
		return err
	}

	if !report.OK() {
		return exitcode.WithCode(exitcode.ValidationError, ErrCheckFailed)
	}
	return nil
}

func writeReport(w io.Writer, r *gallery.Report) {
	_, _ = fmt.Fprint(w, ascii.Box([]string{
		fmt.Sprintf("%s: %d entries", r.Document, r.Entries),
		fmt.Sprintf("%s/: %d files", r.AssetsDir, r.Assets),
	}))
	if r.OK() {
		_, _ = fmt.Fprintln(w, "✅ Gallery is consistent")
		return
	}
	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "\n%s (%d):\n", title, len(names))
		for _, n := range names {
			_, _ = fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	section("Duplicate entries", r.Duplicates)
	section("Dangling entries (no file)", r.Dangling)
	section("Orphaned files (not listed)", r.Orphans)
}
