package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWallCommand creates the wall command group.
func NewWallCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wall",
		Short: "Administer walls",
	}
	cmd.AddCommand(newWallCreateCommand(rootOpts))
	cmd.AddCommand(newWallListCommand(rootOpts))
	return cmd
}

func newWallCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an unclaimed wall and print its id and owner key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				wall, err := a.service.CreateWall(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id\t%s\nowner_key\t%s\n", wall.ID, wall.OwnerKey)
				return nil
			})
		},
	}
}

func newWallListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List walls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				walls, err := a.service.ListWalls(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, w := range walls {
					fmt.Fprintf(out, "%s\t%s\t%s\n", w.ID, w.Status, w.OwnerEmail)
				}
				return nil
			})
		},
	}
}

// withApp runs fn against a wired app with logging discarded.
func withApp(cmd *cobra.Command, rootOpts *RootOptions, fn func(context.Context, *app) error) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, zap.NewNop().Sugar())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
