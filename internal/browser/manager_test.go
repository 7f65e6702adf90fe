package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBrowser struct {
	sessions atomic.Int32
	closes   atomic.Int32
}

func (b *countingBrowser) NewSession(context.Context, SessionOptions) (Session, error) {
	b.sessions.Add(1)
	return NewStatic(StaticOptions{}).NewSession(context.Background(), SessionOptions{})
}

func (b *countingBrowser) Close() error {
	b.closes.Add(1)
	return nil
}

func TestManager_LaunchesOnceLazily(t *testing.T) {
	b := &countingBrowser{}
	var launches atomic.Int32
	m := NewManager(func(context.Context) (Browser, error) {
		launches.Add(1)
		return b, nil
	})

	assert.False(t, m.Started())
	assert.Equal(t, int32(0), launches.Load())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.NewSession(context.Background(), SessionOptions{})
			assert.NoError(t, err)
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()

	assert.True(t, m.Started())
	assert.Equal(t, int32(1), launches.Load())
	assert.Equal(t, int32(10), b.sessions.Load())
}

func TestManager_RetriesFailedLaunch(t *testing.T) {
	attempts := 0
	m := NewManager(func(context.Context) (Browser, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("chromium not found")
		}
		return &countingBrowser{}, nil
	})

	_, err := m.NewSession(context.Background(), SessionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium not found")
	assert.False(t, m.Started())

	_, err = m.NewSession(context.Background(), SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestManager_CloseOnce(t *testing.T) {
	b := &countingBrowser{}
	m := NewManager(func(context.Context) (Browser, error) { return b, nil })

	_, err := m.Browser(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, int32(1), b.closes.Load())
	assert.False(t, m.Started())

	_, err = m.NewSession(context.Background(), SessionOptions{})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_CloseBeforeLaunch(t *testing.T) {
	m := NewManager(func(context.Context) (Browser, error) {
		t.Fatal("launch must not run")
		return nil, nil
	})
	assert.NoError(t, m.Close())
}

func TestNewLauncher(t *testing.T) {
	l, err := NewLauncher(EngineStatic, ChromeOptions{}, StaticOptions{})
	require.NoError(t, err)
	b, err := l(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &StaticBrowser{}, b)

	_, err = NewLauncher("firefox", ChromeOptions{}, StaticOptions{})
	assert.Error(t, err)
}
