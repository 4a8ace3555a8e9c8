// Package render turns contract snapshots into Markdown documents and redlines.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/contract-ledger/internal/models"
)

// Markdown renders a snapshot as a human-readable document, one section per clause.
func Markdown(bc models.BaseContract) string {
	var b strings.Builder
	m := bc.Meta
	fmt.Fprintf(&b, "# Contract %s\n\n", bc.ContractID)
	fmt.Fprintf(&b, "Hotel: %s | Sign date: %s | Currency: %s\n\n", m.Hotel, m.SignDate, m.Currency)

	for _, c := range bc.Clauses {
		fmt.Fprintf(&b, "## %s: %s\n", c.Type, c.Title)
		if c.Scope.Len() > 0 {
			fmt.Fprintf(&b, "- Scope: `%s`\n", compactJSON(c.Scope))
		}
		fmt.Fprintf(&b, "- Effective: %s → %s\n", c.EffectiveFrom, models.FormatOpen(c.EffectiveTo))

		if len(c.Table) > 0 {
			b.WriteString("\n")
			b.WriteString(rateTable(c.Table))
			b.WriteString("\n\n")
		}
		if c.Policy.Len() > 0 {
			fmt.Fprintf(&b, "- Policy: `%s`\n", compactJSON(c.Policy))
		}
		if len(c.Blackout) > 0 {
			fmt.Fprintf(&b, "- Blackout: %s\n", strings.Join(c.Blackout, ", "))
		}
		if len(c.Season) > 0 {
			windows := make([]string, 0, len(c.Season))
			for _, s := range c.Season {
				windows = append(windows, s.From.String()+".."+s.To.String())
			}
			fmt.Fprintf(&b, "- Season: %s\n", strings.Join(windows, ", "))
		}
		if c.Text != "" {
			b.WriteString("\n> ")
			b.WriteString(strings.ReplaceAll(c.Text, "\n", "\n> "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func rateTable(rows []models.RateRow) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"date_from", "date_to", "rate", "currency", "notes"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.DateFrom.String(), r.DateTo.String(), FormatRate(r.Rate), r.Currency, r.Notes})
	}
	return t.RenderMarkdown()
}

// FormatRate prints a rate without a trailing ".0" or exponent.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

func compactJSON(f *models.Fields) string {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%v", f.Map())
	}
	return string(raw)
}
