package ai

import (
	"fmt"
	"strings"

	"github.com/david/contract-ledger/internal/models"
)

const systemPrompt = `You extract hotel contract data. The input is Markdown that keeps the document's tables and headings; it is often in Vietnamese.
Return exactly one JSON object and nothing else. Do not guess: when a value is missing use null.
All dates are YYYY-MM-DD. Rates are plain numbers without thousands separators.`

const baseInstructions = `Mode: BASE. Return {"meta": {...}, "clauses": [...]}.
meta: {"hotel": string, "sign_date": "YYYY-MM-DD", "currency": ISO 4217 code}
each clause: {
  "id": string,
  "type": one of %s,
  "title": string,
  "scope": object such as {"room_type": "Deluxe"} or null,
  "season": [{"from": date, "to": date}] or null,
  "blackout": [date] or null,
  "table": [{"date_from": date, "date_to": date, "rate": number, "currency": string, "notes": string or null}] or null,
  "policy": object or null,
  "text": string or null,
  "effective_from": date,
  "effective_to": date or null,
  "source_anchor": {"page": number, "heading": string, "table_id": string} or null,
  "confidence": number between 0 and 1
}`

const addendumInstructions = `Mode: ADDENDUM. Return a change set:
{"source_doc": string, "issued_date": date, "changes": [...]}
each change: {
  "id": string,
  "op": "add" | "replace" | "remove",
  "type": one of %s,
  "target": {"clause_id": string or null, "type": clause type or null, "scope": object or null},
  "payload": object or null (RateAdjustment needs {"rate": number, "currency": string}; Promotion may carry "discount_pct"),
  "effective_from": date,
  "effective_to": date or null,
  "notes": string or null,
  "confidence": number between 0 and 1
}`

func buildUserPrompt(chunks []models.Chunk, mode Mode) string {
	var header string
	switch mode {
	case ModeAddendum:
		header = fmt.Sprintf(addendumInstructions, quoteList(changeTypeNames()))
	default:
		header = fmt.Sprintf(baseInstructions, quoteList(clauseTypeNames()))
	}

	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, header)
	for _, c := range chunks {
		label := ""
		if c.Label != "" {
			label = " " + c.Label
		}
		parts = append(parts, fmt.Sprintf("[Chunk%s]\n%s", label, c.Markdown))
	}
	return strings.Join(parts, "\n\n")
}

func clauseTypeNames() []string {
	out := make([]string, 0, len(models.ClauseTypes))
	for _, t := range models.ClauseTypes {
		out = append(out, string(t))
	}
	return out
}

func changeTypeNames() []string {
	out := make([]string, 0, len(models.ChangeTypes))
	for _, t := range models.ChangeTypes {
		out = append(out, string(t))
	}
	return out
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}
