package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitReturnsValue(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestAwaitReturnsError(t *testing.T) {
	boom := errors.New("query failed")
	f := Go(context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	})
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCancelledResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(ctx context.Context) (string, error) {
		<-release
		return "stale", nil
	})

	f.Cancel()
	close(release)
	<-f.Done()

	v, err := f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, v)
}

func TestCancelStopsWork(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	f.Cancel()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("work did not observe cancellation")
	}
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParentContextCancels(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	f := Go(parent, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 7, nil
	})
	cancel()

	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitContextDeadline(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-f.Done()
	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
