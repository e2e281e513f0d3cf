package cli

import (
	"context"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// annotateCommand creates the annotate command.
func (c *CLI) annotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "annotate FILE_ID FILENAME [INDEX LABEL]",
		Short: "Label blocks of an uploaded file",
		Long: `Label one block directly by giving its index and label, or omit them to
open an interactive editor for every block of the file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return fmt.Errorf("accepts 2 or 4 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withService(ctx, func(svc *pipeline.Service) error {
				if len(args) == 2 {
					return c.runAnnotateInteractive(ctx, svc, args[0], args[1])
				}
				index, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid block index %q", args[2])
				}
				res, err := svc.Annotate(ctx, args[0], args[1], index, args[3])
				if err != nil {
					return err
				}
				printSuccess("Block %d labelled %s", index, StyleHighlight.Render(args[3]))
				printBlocks(res.Layout)
				return nil
			})
		},
	}
}

func (c *CLI) runAnnotateInteractive(ctx context.Context, svc *pipeline.Service, fileID, filename string) error {
	res, err := svc.Layout(ctx, fileID, filename)
	if err != nil {
		return err
	}
	if res.Layout.Len() == 0 {
		printWarning("%s has no blocks to label", filename)
		return nil
	}

	final, err := tea.NewProgram(newAnnotateModel(filename, res.Layout), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	m := final.(annotateModel)
	if !m.saved {
		printInfo("No changes saved")
		return nil
	}

	changes := m.changes()
	for _, ch := range changes {
		if _, err := svc.Annotate(ctx, fileID, filename, ch.index, ch.label); err != nil {
			return err
		}
	}
	printSuccess("Saved %d label(s)", len(changes))
	return nil
}
