package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// templateCommand creates the template command group.
func (c *CLI) templateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Save, inspect and list templates",
	}
	cmd.AddCommand(c.templateSaveCommand())
	cmd.AddCommand(c.templateShowCommand())
	cmd.AddCommand(c.templateListCommand())
	return cmd
}

func (c *CLI) templateSaveCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "save FILE_ID FILENAME",
		Short: "Save the current layout of a file as a template",
		Long: `Save the current layout of an uploaded file, labels included, as a new
template. With --name the template can be referred to by that name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				saved, err := svc.SaveTemplate(cmd.Context(), args[0], args[1], name)
				if err != nil {
					return err
				}
				printSuccess("Saved template %s", StyleHighlight.Render(saved.Handle()))
				if saved.DisplayName != "" {
					printDetail("id %s", saved.ID)
				}
				printNextStep("Apply it", fmt.Sprintf("%s apply FILE_ID FILENAME %q", appName, saved.Handle()))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name for the template")
	return cmd
}

func (c *CLI) templateShowCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show NAME_OR_ID",
		Short: "Show a template's blocks and labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				t, err := svc.LoadTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(t)
				}
				printKeyValue("Template", t.Name())
				printKeyValue("ID", t.ID)
				printKeyValue("Source", t.SourceFilename)
				printKeyValue("Created", t.CreatedAt.Local().Format("2006-01-02 15:04"))
				printBlocks(t.Layout)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the template as JSON")
	return cmd
}

func (c *CLI) templateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List templates in the order they are tried",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				templates, err := svc.ListTemplates(cmd.Context())
				if err != nil {
					return err
				}
				if len(templates) == 0 {
					printInfo("No templates saved yet")
					return nil
				}
				fmt.Println(templateTable(templates))
				return nil
			})
		},
	}
}

// templateTable renders templates in registration order.
func templateTable(templates []catalog.Template) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("#", "Name", "Blocks", "Labelled", "Source").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return StyleTitle.Padding(0, 1)
			}
			return StyleValue.Padding(0, 1)
		})
	for i, tmpl := range templates {
		t.Row(
			fmt.Sprint(i+1),
			tmpl.Name(),
			fmt.Sprint(tmpl.Layout.Len()),
			fmt.Sprint(tmpl.Layout.Annotated()),
			tmpl.SourceFilename,
		)
	}
	return t.String()
}
