package bulk

import (
	"context"
	"testing"
	"time"

	"bulkctl/cli/internal/distlock"
	"bulkctl/cli/internal/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminal(processed int64) JobInfo {
	return JobInfo{State: StateJobComplete, RecordsProcessed: processed, Terminal: true}
}

func running(processed int64) JobInfo {
	return JobInfo{State: StateInProgress, RecordsProcessed: processed}
}

func TestPollerStabilityCheck(t *testing.T) {
	tests := []struct {
		name      string
		infos     []JobInfo
		wantCalls int
	}{
		{
			name:      "terminal twice with same count stops on second call",
			infos:     []JobInfo{terminal(100), terminal(100)},
			wantCalls: 2,
		},
		{
			name:      "count still moving while terminal",
			infos:     []JobInfo{terminal(80), terminal(100), terminal(100)},
			wantCalls: 3,
		},
		{
			name:      "in progress then terminal",
			infos:     []JobInfo{running(0), running(50), terminal(100), terminal(100)},
			wantCalls: 4,
		},
		{
			name:      "unchanged count while running does not stop",
			infos:     []JobInfo{running(100), running(100), terminal(100)},
			wantCalls: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedStatus{infos: tt.infos}
			var seen []int64
			p := NewPoller(time.Millisecond, WithObserver(func(info *JobInfo) {
				seen = append(seen, info.RecordsProcessed)
			}))

			info, err := p.Wait(context.Background(), src, "750P-"+tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, src.count())
			assert.True(t, info.Terminal)
			assert.Len(t, seen, tt.wantCalls)
		})
	}
}

type failingStatus struct{ calls int }

func (f *failingStatus) Status(context.Context, string) (*JobInfo, error) {
	f.calls++
	return nil, errors.Remote("job status", 503, []byte("unavailable"))
}

func TestPollerStatusErrorPropagates(t *testing.T) {
	src := &failingStatus{}
	_, err := NewPoller(time.Millisecond).Wait(context.Background(), src, "750F")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.RemoteRequest))
	assert.Equal(t, 1, src.calls, "status errors must not be re-polled")
}

func TestPollerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedStatus{
		infos: []JobInfo{running(10)},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	_, err := NewPoller(time.Millisecond).Wait(ctx, src, "750C")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Cancelled))
	e, _ := errors.As(err)
	assert.Equal(t, "750C", e.JobID)
	assert.Equal(t, 2, src.count(), "no status call after the wait was cancelled")
}

func TestPollerCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src := &scriptedStatus{infos: []JobInfo{running(10)}}
	start := time.Now()
	_, err := NewPoller(time.Hour).Wait(ctx, src, "750S")
	assert.True(t, errors.Is(err, errors.Cancelled))
	assert.Equal(t, 1, src.count())
	assert.Less(t, time.Since(start), time.Minute, "cancel must interrupt the sleep")
}

func TestPollerRejectsSecondPollerForSameJob(t *testing.T) {
	ctx := context.Background()
	held := distlock.NewLocalLock("750L")
	ok, err := held.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Release(ctx)

	src := &scriptedStatus{infos: []JobInfo{terminal(1)}}
	_, err = NewPoller(time.Millisecond).Wait(ctx, src, "750L")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.PollerConflict))
	assert.Equal(t, 0, src.count())
}

func TestPollerReleasesLock(t *testing.T) {
	ctx := context.Background()
	src := &scriptedStatus{infos: []JobInfo{terminal(5)}}
	p := NewPoller(time.Millisecond)

	_, err := p.Wait(ctx, src, "750R")
	require.NoError(t, err)
	_, err = p.Wait(ctx, src, "750R")
	require.NoError(t, err, "lock must be released after a finished wait")
}

func TestPollerWithRedisLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	src := &scriptedStatus{
		infos: []JobInfo{running(0), terminal(3), terminal(3)},
		onCall: func(int) {
			assert.True(t, mr.Exists("bulkctl:lock:750X"), "lock held while polling")
		},
	}
	p := NewPoller(time.Millisecond, WithLocks(distlock.Redis(client, time.Minute)))
	_, err = p.Wait(context.Background(), src, "750X")
	require.NoError(t, err)
	assert.Equal(t, 3, src.count())
	assert.False(t, mr.Exists("bulkctl:lock:750X"))
}

func TestPollerStopsWhenRedisLockIsTakenOver(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	other := distlock.NewRedisLock(client, "750T", time.Minute)
	src := &scriptedStatus{
		infos: []JobInfo{running(0)},
		onCall: func(n int) {
			if n != 2 {
				return
			}
			// the key expires and a second process takes it
			mr.Del("bulkctl:lock:750T")
			ok, err := other.Acquire(context.Background())
			assert.NoError(t, err)
			assert.True(t, ok)
		},
	}
	p := NewPoller(time.Millisecond, WithLocks(distlock.Redis(client, time.Minute)))
	_, err = p.Wait(context.Background(), src, "750T")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.PollerConflict))
	e, _ := errors.As(err)
	assert.Equal(t, "750T", e.JobID)
	assert.Equal(t, 2, src.count(), "no status call after the lock was lost")
	assert.True(t, mr.Exists("bulkctl:lock:750T"), "the new owner keeps its lock")
}

func TestNewPollerDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, NewPoller(0).interval)
	assert.Equal(t, DefaultPollInterval, NewPoller(-time.Second).interval)
}
