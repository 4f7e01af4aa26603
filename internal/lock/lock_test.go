package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/lock"
)

func TestMultipleReadersConcurrent(t *testing.T) {
	l := lock.New()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RLock()
			defer l.RUnlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Greater(t, maxActive, int32(1))
}

func TestWriterExcludesReaders(t *testing.T) {
	l := lock.New()
	var order []string
	var mu sync.Mutex

	l.Lock()
	done := make(chan struct{})
	go func() {
		l.RLock()
		mu.Lock()
		order = append(order, "reader")
		mu.Unlock()
		l.RUnlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, "writer")
	mu.Unlock()
	l.Unlock()

	<-done
	assert.Equal(t, []string{"writer", "reader"}, order)
}

func TestWriterFunc(t *testing.T) {
	l := lock.New()
	called := false
	err := lock.Writer(l, "test op", func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLockContextCancelled(t *testing.T) {
	l := lock.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.LockContext(ctx)
	require.Error(t, err)
}

func TestSolverMutexSerializes(t *testing.T) {
	s := lock.NewSolverMutex()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.With(func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 3)
}
