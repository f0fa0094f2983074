package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, ErrInternal.Status, err.Status)
}

func TestCloneKeepsCodeAndMatches(t *testing.T) {
	clone := Clone(ErrInvalidState, "request already approved")
	assert.Equal(t, "request already approved", clone.Message)
	assert.True(t, stdErrors.Is(clone, ErrInvalidState))
	assert.False(t, stdErrors.Is(clone, ErrNotFound))
	assert.True(t, HasCode(fmt.Errorf("wrapped: %w", clone), ErrInvalidState.Code))
}

func TestWrapUnwrapsToCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "request not found")
	assert.True(t, stdErrors.Is(err, sql.ErrNoRows))
	assert.Equal(t, "request not found: sql: no rows in result set", err.Error())
}
