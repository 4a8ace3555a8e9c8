package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
)

// Validator checks decoded contracts and change sets. Struct tags carry the
// shape rules; the business rules run after them.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clausetype", validateClauseType)
	return &Validator{validate: v}
}

func validateClauseType(fl validator.FieldLevel) bool {
	t := models.ClauseType(fl.Field().String())
	for _, known := range models.ClauseTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (v *Validator) ValidateBase(bc models.BaseContract) error {
	if err := v.structural(bc); err != nil {
		return err
	}
	for i, c := range bc.Clauses {
		if err := validateClause(c, fmt.Sprintf("clauses[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) ValidateChangeSet(cs models.ChangeSet) error {
	if err := v.structural(cs); err != nil {
		return err
	}
	for i, ch := range cs.Changes {
		field := fmt.Sprintf("changes[%d]", i)
		if err := validateWindow(ch.EffectiveFrom, ch.EffectiveTo, field); err != nil {
			return err
		}
		if ch.Type == models.ChangeRateAdjustment {
			if rate, ok := ch.Payload.Float("rate"); !ok || rate <= 0 {
				return apperr.Validation("rate_positive", field+".payload.rate", "RateAdjustment requires payload.rate > 0")
			}
		}
		if ch.Payload.Has("discount_pct") {
			dp, ok := ch.Payload.Float("discount_pct")
			if !ok || dp < 0 || dp > 100 {
				return apperr.Validation("discount_range", field+".payload.discount_pct", "discount_pct must be between 0 and 100")
			}
		}
	}
	return nil
}

func (v *Validator) structural(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		detail := fmt.Sprintf("failed %q", fe.Tag())
		if fe.Param() != "" {
			detail = fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param())
		}
		if len(fieldErrs) > 1 {
			detail += fmt.Sprintf(" and %d more", len(fieldErrs)-1)
		}
		return apperr.Validation(fe.Tag(), field, "%s", detail)
	}
	return apperr.Validation("schema", "", "%v", err)
}

func validateClause(c models.Clause, field string) error {
	if err := validateWindow(c.EffectiveFrom, c.EffectiveTo, field); err != nil {
		return err
	}
	for i, row := range c.Table {
		rowField := fmt.Sprintf("%s.table[%d]", field, i)
		if row.DateFrom.IsZero() || row.DateTo.IsZero() {
			return apperr.Validation("row_dates", rowField, "rate rows need date_from and date_to")
		}
		if row.DateTo.Before(row.DateFrom) {
			return apperr.Validation("row_reversed", rowField, "date_to %s earlier than date_from %s", row.DateTo, row.DateFrom)
		}
		if c.Type == models.ClausePricing {
			if row.Rate <= 0 {
				return apperr.Validation("rate_positive", rowField+".rate", "rate must be > 0")
			}
			if row.Currency == "" {
				return apperr.Validation("currency_required", rowField+".currency", "currency required")
			}
		}
	}
	for i, w := range c.Season {
		if w.From.IsZero() || w.To.IsZero() || w.To.Before(w.From) {
			return apperr.Validation("season_reversed", fmt.Sprintf("%s.season[%d]", field, i), "season window reversed or incomplete")
		}
	}
	return nil
}

func validateWindow(from models.Date, to *models.Date, field string) error {
	if from.IsZero() {
		return apperr.Validation("effective_from_required", field+".effective_from", "effective_from is required")
	}
	if to != nil && to.Before(from) {
		return apperr.Validation("window_reversed", field+".effective_to", "effective_to %s earlier than effective_from %s", *to, from)
	}
	return nil
}
