package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/pipeline"
	"github.com/matzehuels/sheetblocks/pkg/render"
)

// layoutOpts holds the output flags shared by detect and show.
type layoutOpts struct {
	image   string // write the rendered layout here
	jsonOut bool   // print the layout as JSON instead of a table
}

func (o *layoutOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.image, "image", "", "write the layout image to this path (.png or .svg)")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "print the layout as JSON")
}

// detectCommand creates the detect command.
func (c *CLI) detectCommand() *cobra.Command {
	var opts layoutOpts

	cmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Upload spreadsheets and detect their blocks",
		Long: `Upload one or more spreadsheets (.xlsx, .csv, .tsv) and split each into
blocks of consecutive non-blank rows. The printed file ID and filename
identify the upload in later commands.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.image != "" && len(args) > 1 {
				return fmt.Errorf("--image needs a single input file")
			}
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				for _, path := range args {
					if err := c.runDetect(cmd.Context(), svc, path, opts); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func (c *CLI) runDetect(ctx context.Context, svc *pipeline.Service, path string, opts layoutOpts) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	done := timed(log.FromContext(ctx))
	res, err := svc.Upload(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	done("detected blocks", "file", res.Filename, "blocks", res.Layout.Len())

	if err := showLayout(ctx, res, opts); err != nil {
		return err
	}
	if !opts.jsonOut {
		printNextStep("Label a block", fmt.Sprintf("%s annotate %s %q", appName, res.FileID, res.Filename))
	}
	return nil
}

// showCommand creates the show command.
func (c *CLI) showCommand() *cobra.Command {
	var opts layoutOpts

	cmd := &cobra.Command{
		Use:   "show FILE_ID FILENAME",
		Short: "Show the current layout of an uploaded file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				res, err := svc.Layout(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return showLayout(cmd.Context(), res, opts)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func showLayout(ctx context.Context, res *pipeline.FileResult, opts layoutOpts) error {
	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printKeyValue("File ID", res.FileID)
		printKeyValue("Filename", res.Filename)
		printLayoutStats(res.Layout, res.Grid.Height(), res.Cached)
		printBlocks(res.Layout)
	}

	if opts.image != "" {
		return writeImage(ctx, res, opts.image)
	}
	return nil
}

// writeImage renders the layout of res to path; the extension picks the
// format.
func writeImage(ctx context.Context, res *pipeline.FileResult, path string) error {
	format := render.FormatPNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		format = render.FormatSVG
	}

	spinner := startSpinner(ctx, os.Stderr, "Rendering layout...")
	dot := render.ToDOT(res.Layout, render.Options{Rows: res.Grid.Height(), Columns: res.Grid.Width, Title: res.Filename})
	img, err := render.Render(ctx, dot, format)
	spinner.Stop()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	printFile(path)
	return nil
}
