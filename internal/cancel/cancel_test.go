package cancel

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalCancelResets(t *testing.T) {
	c := New()
	tok := c.Token()
	require.NoError(t, tok.Check())

	c.CancelInternal()
	assert.Equal(t, StatusInternal, c.Status())
	assert.ErrorIs(t, tok.Check(), ErrCanceled)

	c.ResetInternal()
	assert.Equal(t, StatusNotCanceled, c.Status())
	assert.ErrorIs(t, tok.Check(), ErrCanceled, "a token from before the cancel stays canceled")
	assert.NoError(t, c.Token().Check(), "a fresh token runs")
}

func TestUserCancelPersists(t *testing.T) {
	c := New()
	c.Cancel()
	c.ResetInternal()
	assert.Equal(t, StatusUser, c.Status())

	err := c.Token().Check()
	assert.ErrorIs(t, err, ErrCanceledByUser)
	assert.True(t, IsCanceled(err))

	c.CancelInternal()
	assert.Equal(t, StatusUser, c.Status(), "internal cancel must not downgrade a user cancel")

	c.Reset()
	assert.NoError(t, c.Token().Check())
}

func TestOnCancelHook(t *testing.T) {
	c := New()
	var mu sync.Mutex
	calls := 0
	c.OnCancel(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	c.CancelInternal()
	c.Cancel()
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	c.OnCancel(nil)
	c.CancelInternal()
	assert.Equal(t, 2, calls)
}

func TestZeroTokenNeverCancels(t *testing.T) {
	var tok Token
	assert.False(t, tok.Canceled())
	assert.False(t, IsCanceled(errors.New("boom")))
	assert.Equal(t, "canceled_internally", StatusInternal.String())
}
