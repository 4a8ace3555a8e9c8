package merge

import (
	"sort"

	"github.com/david/contract-ledger/internal/models"
)

const unknownPrecedence = 99

// precedence breaks ties between changes effective on the same day.
var precedence = map[models.ChangeType]int{
	models.ChangeStopSell:        0,
	models.ChangeOpenSell:        1,
	models.ChangeRateAdjustment:  2,
	models.ChangePolicyUpdate:    3,
	models.ChangeAllotmentUpdate: 3,
	models.ChangeTaxUpdate:       3,
	models.ChangeSurchargeUpdate: 3,
	models.ChangePromotion:       4,
}

func Precedence(t models.ChangeType) int {
	if p, ok := precedence[t]; ok {
		return p
	}
	return unknownPrecedence
}

// SortChanges returns a copy ordered by effective_from, then precedence.
// Equal keys keep their input order.
func SortChanges(changes []models.Change) []models.Change {
	out := append([]models.Change(nil), changes...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].EffectiveFrom.Compare(out[j].EffectiveFrom); c != 0 {
			return c < 0
		}
		return Precedence(out[i].Type) < Precedence(out[j].Type)
	})
	return out
}
