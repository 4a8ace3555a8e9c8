package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/david/contract-ledger/internal/ai"
	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
)

const (
	defaultHotel      = "Unknown Hotel"
	defaultCurrency   = "VND"
	defaultConfidence = 0.5
)

// RepairBase fills bookkeeping defaults into raw model output for a base
// contract and rewrites free-form dates, amounts and clause types into their
// canonical form. Business values the model left out stay missing so the
// validator rejects the document.
func RepairBase(doc map[string]any, today models.Date) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}

	meta := asMap(doc["meta"])
	if hotel := asString(meta["hotel"]); hotel == "" {
		meta["hotel"] = defaultHotel
	} else {
		meta["hotel"] = sanitizeTitle(hotel)
	}
	meta["sign_date"] = repairDate(meta["sign_date"], today.String())
	if cur := asString(meta["currency"]); cur == "" {
		meta["currency"] = defaultCurrency
	} else {
		meta["currency"] = normalizeCurrency(cur)
	}
	doc["meta"] = meta

	signDate := asString(meta["sign_date"])
	clauses := asList(doc["clauses"])
	repaired := make([]any, 0, len(clauses))
	for idx, item := range clauses {
		c := asMap(item)
		if asString(c["id"]) == "" {
			c["id"] = fmt.Sprintf("c%d", idx+1)
		} else {
			c["id"] = asString(c["id"])
		}
		c["type"] = repairClauseType(c["type"], models.ClauseOther)
		if title := asString(c["title"]); title == "" {
			c["title"] = fmt.Sprintf("Clause %d", idx+1)
		} else {
			c["title"] = sanitizeTitle(title)
		}
		if text, ok := c["text"].(string); ok {
			c["text"] = sanitizeText(text)
		}
		c["effective_from"] = repairDate(c["effective_from"], signDate)
		c["effective_to"] = repairDate(c["effective_to"], "")
		c["confidence"] = repairConfidence(c["confidence"])

		if rows, ok := c["table"].([]any); ok {
			for i, r := range rows {
				rows[i] = repairRateRow(asMap(r))
			}
		}
		if windows, ok := c["season"].([]any); ok {
			for i, w := range windows {
				m := asMap(w)
				m["from"] = repairDate(m["from"], "")
				m["to"] = repairDate(m["to"], "")
				windows[i] = m
			}
		}
		if days, ok := c["blackout"].([]any); ok {
			for i, d := range days {
				days[i] = repairDate(d, "")
			}
		}
		repaired = append(repaired, c)
	}
	doc["clauses"] = repaired
	return doc
}

// RepairAddendum is RepairBase for a change set. source names the uploaded
// document and backs a missing source_doc.
func RepairAddendum(doc map[string]any, source string, today models.Date) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}
	if asString(doc["source_doc"]) == "" {
		doc["source_doc"] = source
	}
	doc["issued_date"] = repairDate(doc["issued_date"], today.String())

	changes := asList(doc["changes"])
	repaired := make([]any, 0, len(changes))
	for idx, item := range changes {
		ch := asMap(item)
		if asString(ch["id"]) == "" {
			ch["id"] = fmt.Sprintf("ch%d", idx+1)
		} else {
			ch["id"] = asString(ch["id"])
		}
		if op := strings.ToLower(asString(ch["op"])); op == "" {
			ch["op"] = string(models.OpAdd)
		} else {
			ch["op"] = op
		}
		if raw := asString(ch["type"]); raw != "" {
			if kind, ok := ai.CanonicalChangeType(raw); ok {
				ch["type"] = string(kind)
			} else {
				ch["type"] = raw
			}
		}

		target := asMap(ch["target"])
		if id := asString(target["clause_id"]); id != "" {
			target["clause_id"] = id
		}
		if asString(target["type"]) != "" {
			target["type"] = repairClauseType(target["type"], "")
		}
		ch["target"] = target

		if payload, ok := ch["payload"].(map[string]any); ok {
			repairPayload(payload)
		}
		ch["effective_from"] = repairDate(ch["effective_from"], "")
		ch["effective_to"] = repairDate(ch["effective_to"], "")
		ch["confidence"] = repairConfidence(ch["confidence"])
		repaired = append(repaired, ch)
	}
	doc["changes"] = repaired
	return doc
}

func repairRateRow(row map[string]any) map[string]any {
	row["date_from"] = repairDate(row["date_from"], "")
	row["date_to"] = repairDate(row["date_to"], "")
	if s, ok := row["rate"].(string); ok {
		if value, cur, ok := parseAmountRobust(s, ""); ok {
			row["rate"] = value
			if asString(row["currency"]) == "" && cur != "" {
				row["currency"] = cur
			}
		}
	}
	if cur := asString(row["currency"]); cur != "" {
		row["currency"] = normalizeCurrency(cur)
	}
	return row
}

func repairPayload(payload map[string]any) {
	if s, ok := payload["rate"].(string); ok {
		if value, cur, ok := parseAmountRobust(s, ""); ok {
			payload["rate"] = value
			if asString(payload["currency"]) == "" && cur != "" {
				payload["currency"] = cur
			}
		}
	}
	if cur := asString(payload["currency"]); cur != "" {
		payload["currency"] = normalizeCurrency(cur)
	}
	if s, ok := payload["discount_pct"].(string); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64); err == nil {
			payload["discount_pct"] = v
		}
	}
}

// repairDate returns v as an ISO date when it parses, fallback when v is
// blank and v itself otherwise. An empty fallback yields nil.
func repairDate(v any, fallback string) any {
	s, isString := v.(string)
	if v == nil || (isString && strings.TrimSpace(s) == "") {
		if fallback == "" {
			return nil
		}
		return fallback
	}
	if !isString {
		return v
	}
	d, err := parseDateRobust(s)
	if err != nil {
		return s
	}
	return d.String()
}

func repairClauseType(v any, fallback models.ClauseType) any {
	raw := asString(v)
	if raw == "" {
		if fallback == "" {
			return nil
		}
		return string(fallback)
	}
	if t, ok := ai.CanonicalClauseType(raw); ok {
		return string(t)
	}
	return raw
}

func repairConfidence(v any) any {
	switch t := v.(type) {
	case nil:
		return defaultConfidence
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return defaultConfidence
	}
	return v
}

func normalizeCurrency(s string) string {
	if code := detectCurrency(s); code != "" {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// DecodeBase turns a repaired document into a BaseContract. The contract id
// and source file come from the upload, not the model.
func DecodeBase(doc map[string]any, contractID, sourceFile string) (models.BaseContract, error) {
	doc["contract_id"] = contractID
	meta := asMap(doc["meta"])
	meta["source_file"] = sourceFile
	doc["meta"] = meta

	var bc models.BaseContract
	if err := remarshal(doc, &bc); err != nil {
		return models.BaseContract{}, err
	}
	if bc.Clauses == nil {
		bc.Clauses = []models.Clause{}
	}
	return bc, nil
}

func DecodeChangeSet(doc map[string]any) (models.ChangeSet, error) {
	var cs models.ChangeSet
	if err := remarshal(doc, &cs); err != nil {
		return models.ChangeSet{}, err
	}
	if cs.Changes == nil {
		cs.Changes = []models.Change{}
	}
	return cs, nil
}

func remarshal(doc map[string]any, dst any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperr.Validation("schema", "", "encode extracted document: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.Validation("schema", "", "%v", err)
	}
	return nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

// asString returns strings trimmed and numbers formatted; anything else is "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	}
	return ""
}
