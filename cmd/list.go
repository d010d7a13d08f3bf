/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/picshelf/internal/gallery"
	"github.com/fulmenhq/picshelf/internal/ops"
	"github.com/fulmenhq/picshelf/pkg/ascii"
	"github.com/fulmenhq/picshelf/pkg/exitcode"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	_ = ops.RegisterCommand("list", ops.GroupGallery, "List manifest entries and whether each file exists")
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the images in the manifest",
		Long: `List the entries of the image list in document order, marking entries whose
file is missing from the assets folder.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
	cmd.Flags().String("format", "text", "Output format (text|json|yaml)")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	entries, err := svc.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeJSON(out, entries)
	case "yaml":
		return writeYAML(out, entries)
	default:
		writeEntryTable(out, entries)
		return nil
	}
}

// maxNameWidth caps the IMAGE column in text output.
const maxNameWidth = 60

func writeEntryTable(w io.Writer, entries []gallery.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No images listed.")
		return
	}
	rows := make([][]string, 0, len(entries))
	missing := 0
	for _, e := range entries {
		status := "ok"
		if !e.Exists {
			status = "missing"
			missing++
		}
		rows = append(rows, []string{ascii.Truncate(e.Name, maxNameWidth), status})
	}
	_, _ = fmt.Fprint(w, ascii.Table([]string{"IMAGE", "STATUS"}, rows))
	_, _ = fmt.Fprintf(w, "\n%d image(s), %d missing\n", len(entries), missing)
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "text", "json", "yaml":
		return format, nil
	default:
		return "", exitcode.WithCode(exitcode.ConfigError, fmt.Errorf("unsupported format %q (want text, json or yaml)", format))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %v", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to format YAML: %v", err)
	}
	return enc.Close()
}
