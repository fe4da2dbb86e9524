package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateSubcommand(opts, "up", "Apply pending migrations", func(ctx context.Context, cmd *cobra.Command, st *store) error {
			if err := st.migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", st.driver)
			return nil
		}),
		migrateSubcommand(opts, "down", "Roll back the latest migration", func(ctx context.Context, cmd *cobra.Command, st *store) error {
			if err := st.rollback(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema rolled back\n", st.driver)
			return nil
		}),
		migrateSubcommand(opts, "status", "Show applied and pending migrations", func(ctx context.Context, cmd *cobra.Command, st *store) error {
			states, err := st.status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range states {
				mark := "pending"
				if s.Applied {
					mark = "applied"
				}
				fmt.Fprintf(out, "%03d %-24s %s\n", s.Version, s.Name, mark)
			}
			return nil
		}),
	)
	return cmd
}

func migrateSubcommand(opts *rootOptions, use, short string, run func(context.Context, *cobra.Command, *store) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg.Database, log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.close()

			if err := run(cmd.Context(), cmd, st); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			return nil
		},
	}
}
