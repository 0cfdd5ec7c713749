package livesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingFactory builds fake channels and counts the calls.
type countingFactory struct {
	calls    atomic.Int32
	mu       sync.Mutex
	channels []*fakeChannel
	openErr  error
}

func (f *countingFactory) build(key Key) (Channel, error) {
	f.calls.Add(1)
	c := newFakeChannel(key)
	c.openErr = f.openErr
	f.mu.Lock()
	f.channels = append(f.channels, c)
	f.mu.Unlock()
	return c, nil
}

func TestRegistryAcquireReusesChannel(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t).Sugar())
	f := &countingFactory{}

	first, created, err := reg.Acquire(context.Background(), "job:1", f.build)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := reg.Acquire(context.Background(), "job:1", f.build)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryConcurrentAcquire(t *testing.T) {
	reg := NewRegistry(nil)
	f := &countingFactory{}

	var wg sync.WaitGroup
	got := make([]Channel, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, _, err := reg.Acquire(context.Background(), "logs", f.build)
			assert.NoError(t, err)
			got[i] = ch
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for _, ch := range got {
		assert.Same(t, got[0], ch)
	}
	assert.Equal(t, 16, reg.ListActive()[0].Refs)
}

func TestRegistryReleaseClosesOnLastRef(t *testing.T) {
	reg := NewRegistry(nil)
	f := &countingFactory{}
	ctx := context.Background()

	_, _, err := reg.Acquire(ctx, "chat:1", f.build)
	require.NoError(t, err)
	_, _, err = reg.Acquire(ctx, "chat:1", f.build)
	require.NoError(t, err)
	ch := f.channels[0]

	_, last := reg.Release("chat:1")
	assert.False(t, last)
	assert.Zero(t, ch.closeCount())

	_, last = reg.Release("chat:1")
	assert.True(t, last)
	assert.Equal(t, 1, ch.closeCount())
	assert.Zero(t, reg.Len())

	_, last = reg.Release("chat:1")
	assert.False(t, last)
}

func TestRegistryReplacesTerminalChannel(t *testing.T) {
	reg := NewRegistry(nil)
	f := &countingFactory{}
	ctx := context.Background()

	first, _, err := reg.Acquire(ctx, "job:2", f.build)
	require.NoError(t, err)
	f.channels[0].finishWith(StateClosed, nil)

	second, created, err := reg.Acquire(ctx, "job:2", f.build)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotSame(t, first, second)

	// The stale channel no longer owns the entry.
	assert.False(t, reg.Remove("job:2", first))
	assert.True(t, reg.Remove("job:2", second))
}

func TestRegistryOpenFailure(t *testing.T) {
	reg := NewRegistry(nil)
	boom := errors.New("dial refused")
	f := &countingFactory{openErr: boom}

	_, _, err := reg.Acquire(context.Background(), "chat:3", f.build)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len())

	f.openErr = nil
	_, created, err := reg.Acquire(context.Background(), "chat:3", f.build)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry(nil)
	boom := errors.New("bad url")
	_, _, err := reg.Acquire(context.Background(), "logs", func(Key) (Channel, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len())
}

func TestRegistryListActiveOrder(t *testing.T) {
	reg := NewRegistry(nil)
	f := &countingFactory{}
	ctx := context.Background()
	for _, key := range []Key{"job:b", "logs", "job:a", "chat:9"} {
		_, _, err := reg.Acquire(ctx, key, f.build)
		require.NoError(t, err)
	}
	reg.Release("logs")

	active := reg.ListActive()
	var keys []Key
	for _, a := range active {
		keys = append(keys, a.Key)
		assert.Equal(t, StateOpen, a.State)
		assert.Equal(t, 1, a.Refs)
	}
	assert.Equal(t, []Key{"job:b", "job:a", "chat:9"}, keys)
}

func TestRegistryCloseAll(t *testing.T) {
	reg := NewRegistry(nil)
	f := &countingFactory{}
	for _, key := range []Key{"a", "b", "c"} {
		_, _, err := reg.Acquire(context.Background(), key, f.build)
		require.NoError(t, err)
	}

	reg.CloseAll()
	assert.Zero(t, reg.Len())
	for _, ch := range f.channels {
		assert.Equal(t, 1, ch.closeCount())
		assert.Equal(t, StateClosed, ch.State())
	}
}
