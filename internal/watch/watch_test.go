package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWithoutReceivers(t *testing.T) {
	v := New(0.0)
	assert.ErrorIs(t, v.Send(0.5), ErrNoReceivers)
	assert.Equal(t, 0.5, v.Borrow())
}

func TestChangedSeesLatestOnly(t *testing.T) {
	v := New("initial")
	rx := v.Subscribe()
	defer rx.Close()

	require.NoError(t, v.Send("a"))
	require.NoError(t, v.Send("b"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rx.Changed(ctx))
	assert.Equal(t, "b", rx.Borrow())

	// both sends were collapsed into one change
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, rx.Changed(short), context.DeadlineExceeded)
}

func TestChangedWakesOnSend(t *testing.T) {
	v := New(0)
	rx := v.Subscribe()
	defer rx.Close()

	done := make(chan error, 1)
	go func() {
		done <- rx.Changed(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, v.Send(7))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken")
	}
	assert.Equal(t, 7, rx.BorrowAndUpdate())
}

func TestReceiverClose(t *testing.T) {
	v := New(0)
	rx := v.Subscribe()
	assert.Equal(t, 1, v.ReceiverCount())
	rx.Close()
	rx.Close()
	assert.Equal(t, 0, v.ReceiverCount())
	assert.ErrorIs(t, v.Send(1), ErrNoReceivers)
}

func TestValueClose(t *testing.T) {
	v := New(1)
	rx := v.Subscribe()
	defer rx.Close()

	v.Close()
	assert.ErrorIs(t, rx.Changed(context.Background()), ErrClosed)
	assert.ErrorIs(t, v.Send(2), ErrClosed)
	assert.Equal(t, 1, v.Borrow())
}
