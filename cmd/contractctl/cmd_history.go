package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/render"
	"github.com/david/contract-ledger/internal/versions"
)

func (c *cli) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <contract-id>",
		Short: "List the stored versions of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closer, err := c.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()

			infos, err := history.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				return apperr.NotFoundf("contract %s", args[0])
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Version", "Created", "Clauses", "Source", "Hash"})
			for _, info := range infos {
				t.AppendRow(table.Row{
					info.Version,
					info.CreatedAt.Format("2006-01-02 15:04:05"),
					info.ClauseCount,
					info.SourceFile,
					shortHash(info.ContentHash),
				})
			}
			t.Render()
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	var (
		version  int
		asOf     string
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Print a contract version, or its view on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closer, err := c.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()

			var snap *models.BaseContract
			if version > 0 {
				snap, err = history.Load(cmd.Context(), args[0], version)
			} else {
				snap, _, err = history.LatestSnapshot(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			contract := *snap
			if asOf != "" {
				d, err := models.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				contract = versions.StateAsOf(contract, d)
			}

			if markdown {
				_, err = io.WriteString(cmd.OutOrStdout(), render.Markdown(contract))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), contract)
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "version to show (default latest)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "only clauses in force on this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render as Markdown instead of JSON")
	return cmd
}

func (c *cli) redlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redline <contract-id> <version>",
		Short: "Show clauses added and removed by a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil || version < 1 {
				return fmt.Errorf("version must be a positive integer, got %q", args[1])
			}

			history, closer, err := c.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()

			latest, err := history.Load(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			var old *models.BaseContract
			if version > 1 {
				old, err = history.Load(cmd.Context(), args[0], version-1)
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					return err
				}
			}
			_, err = io.WriteString(cmd.OutOrStdout(), render.Diff(old, *latest).Markdown())
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
