package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	v := fmt.Errorf("base contract: %w", Validation("rate_positive", "clauses[0].table[1].rate", "rate must be > 0"))
	assert.True(t, errors.Is(v, ErrValidation))
	assert.False(t, errors.Is(v, ErrNotFound))

	var ve *ValidationError
	assert.True(t, errors.As(v, &ve))
	assert.Equal(t, "rate_positive", ve.Rule)

	u := fmt.Errorf("extract: %w", &UpstreamError{Service: "docling", Attempts: 3, Err: errors.New("502")})
	assert.True(t, errors.Is(u, ErrUpstream))
	assert.Contains(t, u.Error(), "after 3 attempt(s)")

	assert.True(t, errors.Is(NotFoundf("contract %s", "x"), ErrNotFound))
	assert.True(t, errors.Is(Conflictf("version %d exists", 2), ErrConflict))
}
