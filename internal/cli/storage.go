package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// storageCommand creates the storage command group.
func (c *CLI) storageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and manage stored data",
	}
	cmd.AddCommand(c.storageInfoCommand())
	cmd.AddCommand(c.storageKeysCommand())
	cmd.AddCommand(c.storageClearCommand())
	return cmd
}

func (c *CLI) storageInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the configured storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			driver := cfg.Storage.Driver
			if driver == "" {
				driver = storage.DriverFile
			}
			printKeyValue("Driver", driver)
			if cfg.Storage.Dir != "" {
				printKeyValue("Directory", cfg.Storage.Dir)
			}
			if cfg.Storage.DSN != "" {
				printKeyValue("DSN", cfg.Storage.DSN)
			}
			if cfg.Storage.Namespace != "" {
				printKeyValue("Namespace", cfg.Storage.Namespace)
			}
			return nil
		},
	}
}

func (c *CLI) storageKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [PREFIX]",
		Short: "List stored keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			st, err := storage.Open(cmd.Context(), c.config().StorageOptions())
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := st.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func (c *CLI) storageClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all uploads, layouts and templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := storage.Open(ctx, c.config().StorageOptions())
			if err != nil {
				return err
			}
			defer st.Close()

			if fs, ok := st.(*storage.FileStore); ok {
				if err := fs.Clear(); err != nil {
					return err
				}
				printSuccess("Cleared %s", fs.Dir())
				return nil
			}

			keys, err := st.List(ctx, "")
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := st.Delete(ctx, k); err != nil {
					return err
				}
			}
			printSuccess("Deleted %d keys", len(keys))
			return nil
		},
	}
}
