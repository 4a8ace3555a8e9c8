package merge

import (
	"sort"

	"github.com/david/contract-ledger/internal/models"
)

// Normalize sorts every clause's rate table by (date_from, date_to).
func Normalize(clauses []models.Clause) {
	for i := range clauses {
		table := clauses[i].Table
		sort.SliceStable(table, func(a, b int) bool {
			if c := table[a].DateFrom.Compare(table[b].DateFrom); c != 0 {
				return c < 0
			}
			return table[a].DateTo.Before(table[b].DateTo)
		})
	}
}
