package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("*/15 * * * *"))
	require.NoError(t, Validate("@hourly"))
	require.NoError(t, Validate("@every 90s"))
	require.Error(t, Validate("every tuesday"))
	require.Error(t, Validate("* * * * * *"))
}

func TestAddIgnoresEmptySpec(t *testing.T) {
	s := New(zap.NewNop())
	require.NoError(t, s.Add("crawl", "", func(context.Context) error { return nil }))
	assert.Equal(t, 0, s.Len())
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil)
	err := s.Add("crawl", "not a schedule", func(context.Context) error { return nil })
	require.ErrorContains(t, err, "schedule crawl")
}

func TestJobsRunAndStopCancels(t *testing.T) {
	s := New(zap.NewNop())
	var runs atomic.Int32
	started := make(chan struct{}, 1)
	canceled := make(chan struct{})

	require.NoError(t, s.Add("index", "@every 1s", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			started <- struct{}{}
		}
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}))
	require.NoError(t, s.Add("failing", "@every 1s", func(context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, s.Add("panicking", "@every 1s", func(context.Context) error {
		panic("boom")
	}))
	assert.Equal(t, 3, s.Len())

	s.Start()
	assert.False(t, s.Next("index").IsZero())
	assert.True(t, s.Next("missing").IsZero())

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("running job was not canceled")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestJobsNeverOverlap(t *testing.T) {
	s := New(zap.NewNop())
	var (
		active  atomic.Int32
		overlap atomic.Bool
		crawled = make(chan struct{}, 8)
		indexed = make(chan struct{}, 8)
	)
	job := func(done chan struct{}) Job {
		return func(context.Context) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(50 * time.Millisecond)
			active.Add(-1)
			done <- struct{}{}
			return nil
		}
	}
	require.NoError(t, s.Add("crawl", "@every 1s", job(crawled)))
	require.NoError(t, s.Add("index", "@every 1s", job(indexed)))

	s.Start()
	for _, ch := range []chan struct{}{crawled, indexed} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("job never ran")
		}
	}
	s.Stop()

	assert.False(t, overlap.Load(), "two jobs ran at the same time")
}
