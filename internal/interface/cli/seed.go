package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studentgrades/studentgrades-api/internal/application/service"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo students and grades into an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.close()

			if err := st.migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			students, grades := st.services(log)
			res, err := service.NewSeeder(students, grades).Seed(ctx, service.DemoData)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "store already holds students, nothing seeded")
				return nil
			}
			fmt.Fprintf(out, "seeded %d students and %d grades\n", res.Students, res.Grades)
			return nil
		},
	}
}
