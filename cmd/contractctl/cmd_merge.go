package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/contract-ledger/internal/ingest"
	"github.com/david/contract-ledger/internal/merge"
	"github.com/david/contract-ledger/internal/models"
)

func (c *cli) mergeCmd() *cobra.Command {
	var (
		basePath    string
		changesPath string
		outPath     string
		contractID  string
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a change set into a base contract without touching any store",
		Long: `Reads a base contract and a change set as JSON, repairs and validates
them the same way ingestion does, merges and prints the result.
Diagnostics go to stderr unless --out is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := models.Today()
			if contractID == "" {
				contractID = ingest.ContractIDFromFilename(basePath)
			}

			rawBase, err := readJSONFile(basePath)
			if err != nil {
				return err
			}
			base, err := ingest.DecodeBase(ingest.RepairBase(rawBase, today), contractID, filepath.Base(basePath))
			if err != nil {
				return fmt.Errorf("%s: %w", basePath, err)
			}

			rawChanges, err := readJSONFile(changesPath)
			if err != nil {
				return err
			}
			cs, err := ingest.DecodeChangeSet(ingest.RepairAddendum(rawChanges, filepath.Base(changesPath), today))
			if err != nil {
				return fmt.Errorf("%s: %w", changesPath, err)
			}

			v := ingest.NewValidator()
			if err := v.ValidateBase(base); err != nil {
				return fmt.Errorf("%s: %w", basePath, err)
			}
			if err := v.ValidateChangeSet(cs); err != nil {
				return fmt.Errorf("%s: %w", changesPath, err)
			}

			result := merge.NewEngine(c.cfg.Merge, c.log).Apply(base, cs)

			diagOut := cmd.ErrOrStderr()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := writeJSON(f, result.Contract); err != nil {
					return err
				}
				diagOut = cmd.OutOrStdout()
			} else if err := writeJSON(cmd.OutOrStdout(), result.Contract); err != nil {
				return err
			}
			printDiagnostics(diagOut, result.Diagnostics)
			return nil
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "base contract JSON")
	cmd.Flags().StringVar(&changesPath, "changes", "", "change set JSON")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the merged contract here instead of stdout")
	cmd.Flags().StringVar(&contractID, "contract-id", "", "contract id (default: base file name without extension)")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("changes")
	return cmd
}

func readJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func printDiagnostics(w io.Writer, d merge.Diagnostics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Change", "Type", "Outcome", "Detail"})
	for _, a := range d.Applied {
		t.AppendRow(table.Row{a.ChangeID, a.Type, "applied", strings.Join(a.ClauseIDs, ", ")})
	}
	for _, u := range d.Unmatched {
		target := u.Target.ClauseID
		if target == "" {
			target = u.Target.Type
		}
		t.AppendRow(table.Row{u.ChangeID, u.Type, "unmatched", target})
	}
	for _, a := range d.Ambiguous {
		t.AppendRow(table.Row{a.ChangeID, "", "ambiguous", strings.Join(a.ClauseIDs, ", ")})
	}
	for _, s := range d.Skipped {
		t.AppendRow(table.Row{s.ChangeID, s.Type, "skipped", s.Reason})
	}
	for _, n := range d.Notices {
		t.AppendRow(table.Row{n.ChangeID, "", n.Code, n.Message})
	}
	if d.NeedsReview() {
		t.AppendFooter(table.Row{"", "", "needs review", ""})
	}
	t.Render()
}
