package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/david/contract-ledger/internal/db"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Database.Backend != "postgres" {
				return fmt.Errorf("migrate needs the postgres backend, config selects %q", c.cfg.Database.Backend)
			}
			pool, err := db.Connect(cmd.Context(), c.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.ApplyMigrations(cmd.Context(), pool, c.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
