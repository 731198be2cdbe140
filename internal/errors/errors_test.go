package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	e := New(ErrSyncInProgress, "Sync already in progress")
	assert.Equal(t, "[SYNC_IN_PROGRESS] Sync already in progress", e.Error())

	wrapped := Wrap(ErrQueuePersist, "failed to persist", stderrors.New("disk full"))
	assert.Equal(t, "[QUEUE_PERSIST_FAILED] failed to persist: disk full", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("disk full")
	wrapped := Wrap(ErrStorage, "write failed", inner)
	assert.ErrorIs(t, wrapped, inner)
}

func TestIs(t *testing.T) {
	e := New(ErrSyncFailed, "boom")
	assert.True(t, Is(e, ErrSyncFailed))
	assert.False(t, Is(e, ErrSyncTimeout))
	assert.False(t, Is(stderrors.New("plain"), ErrSyncFailed))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrChannelAuthFailed, CodeOf(New(ErrChannelAuthFailed, "no token")))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain")))
}
