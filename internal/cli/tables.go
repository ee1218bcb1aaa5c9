package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/livewall/internal/config"
	"github.com/jacentio/livewall/store"
)

// NewTablesCommand creates the tables command group.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage DynamoDB tables",
	}
	cmd.AddCommand(newTablesCreateCommand(rootOpts))
	return cmd
}

func newTablesCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the users, walls and images tables",
		Long: `Create one DynamoDB table per collection. The images table has a
stream with OLD_IMAGE view for the blob sweeper. Existing tables are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.BackendDynamoDB {
				return fmt.Errorf("store.backend is %q; tables are only managed for %s",
					cfg.Store.Backend, config.BackendDynamoDB)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			awsCfg, err := loadAWS(ctx, cfg)
			if err != nil {
				return err
			}
			sc := storeConfig(cfg)
			existing, err := store.CreateTables(ctx, newDynamoClient(awsCfg, cfg), sc)
			if err != nil {
				return err
			}
			skipped := make(map[string]bool, len(existing))
			for _, name := range existing {
				skipped[name] = true
			}
			out := cmd.OutOrStdout()
			for _, collection := range store.Collections() {
				name := sc.TableName(collection)
				if skipped[name] {
					fmt.Fprintf(out, "%s\texists\n", name)
				} else {
					fmt.Fprintf(out, "%s\tcreated\n", name)
				}
			}
			return nil
		},
	}
}
