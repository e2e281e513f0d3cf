package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/export"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// applyCommand creates the apply command.
func (c *CLI) applyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply FILE_ID FILENAME TEMPLATE",
		Short: "Copy a template's labels onto an uploaded file",
		Long: `Copy the labels of a template, given by name or ID, onto the blocks of an
uploaded file. The file must have the same number of blocks as the template.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				res, err := svc.ApplyTemplate(cmd.Context(), args[0], args[1], args[2])
				if err != nil {
					return err
				}
				printSuccess("Applied %s to %s", StyleHighlight.Render(args[2]), res.Filename)
				printBlocks(res.Layout)
				return nil
			})
		},
	}
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export FILE_ID FILENAME",
		Short: "Export a file's rows with their block labels",
		Long: `Write every row of an uploaded file followed by the label of the block it
belongs to. Rows outside any block get an empty label.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[1], filepath.Ext(args[1])) + "_annotated" + f.Ext()
			}
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				data, err := svc.Export(cmd.Context(), args[0], args[1], f)
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := os.Stdout.Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				printFile(output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout (default FILENAME_annotated.EXT)")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or xlsx")
	return cmd
}
