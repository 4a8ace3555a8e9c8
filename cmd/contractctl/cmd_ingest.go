package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/contract-ledger/internal/app"
	"github.com/david/contract-ledger/internal/ingest"
)

func (c *cli) ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a base contract or an addendum document",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "base <file>",
			Short: "Ingest a base contract; the contract id is the file name without extension",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runIngest(cmd, args[0], func(p *ingest.Pipeline, data []byte) (*ingest.IngestResult, error) {
					return p.IngestBase(cmd.Context(), args[0], data)
				})
			},
		},
		&cobra.Command{
			Use:   "addendum <contract-id> <file>",
			Short: "Merge an addendum into the latest version of a contract",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runIngest(cmd, args[1], func(p *ingest.Pipeline, data []byte) (*ingest.IngestResult, error) {
					return p.IngestAddendum(cmd.Context(), args[0], args[1], data)
				})
			},
		},
	)
	return cmd
}

func (c *cli) runIngest(cmd *cobra.Command, path string, run func(*ingest.Pipeline, []byte) (*ingest.IngestResult, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), c.cfg, c.log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := run(a.Pipeline, data)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendRows([]table.Row{
		{"Contract", res.ContractID},
		{"Version", res.Version},
		{"Document", res.Outputs.Document},
		{"Markdown", res.Outputs.Markdown},
	})
	if res.Outputs.Redline != "" {
		t.AppendRow(table.Row{"Redline", res.Outputs.Redline})
	}
	t.AppendRow(table.Row{"Duration", res.Duration.Round(time.Millisecond).String()})
	t.Render()

	if res.Diagnostics != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		printDiagnostics(cmd.OutOrStdout(), *res.Diagnostics)
	}
	return nil
}
