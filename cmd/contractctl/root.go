package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/david/contract-ledger/internal/app"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/versions"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "contractctl",
		Short:         "Manage versioned hotel contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		c.versionsCmd(),
		c.showCmd(),
		c.redlineCmd(),
		c.mergeCmd(),
		c.ingestCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if !c.verbose {
		c.log = logger.Nop()
		return nil
	}
	c.log, err = logger.New(cfg.Log.Mode)
	return err
}

// openHistory opens the version store only. Read commands do not need the
// extraction stack.
func (c *cli) openHistory(ctx context.Context) (*versions.History, io.Closer, error) {
	store, _, closer, err := app.OpenStores(ctx, c.cfg.Database, c.log)
	if err != nil {
		return nil, nil, err
	}
	return versions.NewHistory(store, c.log), closer, nil
}
