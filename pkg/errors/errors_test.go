package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsKind(t *testing.T) {
	err := Clone(ErrAlreadyDecided, "registration already decided")
	require.True(t, errors.Is(err, ErrAlreadyDecided))
	assert.False(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "registration already decided", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)

	wrapped := fmt.Errorf("context: %w", Clone(ErrNotFound, "event not found"))
	assert.Equal(t, ErrNotFound.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}

func TestUnavailableAndDegraded(t *testing.T) {
	unavailable := Unavailable(sql.ErrConnDone, "")
	assert.True(t, HasCode(unavailable, ErrStoreUnavailable))
	assert.ErrorIs(t, unavailable, sql.ErrConnDone)

	degraded := Degraded(sql.ErrConnDone, "ticket update")
	assert.True(t, HasCode(degraded, ErrAuditDegraded))
	assert.Contains(t, degraded.Error(), "ticket update applied")
}

func TestDegradedIsNotRetryable(t *testing.T) {
	cause := errors.New("db down")
	err := Degraded(Unavailable(cause, "failed to append audit entry"), "ticket creation")

	assert.True(t, errors.Is(err, ErrAuditDegraded))
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, HasCode(err, ErrStoreUnavailable))
	assert.ErrorIs(t, err, cause)

	bare := Degraded(ErrStoreUnavailable, "")
	assert.False(t, errors.Is(bare, ErrStoreUnavailable))
	assert.Contains(t, bare.Error(), ErrStoreUnavailable.Message)
}
