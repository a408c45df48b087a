package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Hit(t *testing.T) {
	c := New[string](time.Minute)
	var loads int

	load := func(ctx context.Context) (string, error) {
		loads++
		return "v1", nil
	}

	v, err := c.GetOrLoad(context.Background(), "k", load)
	assert.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = c.GetOrLoad(context.Background(), "k", load)
	assert.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, 1, loads)
}

func TestCache_Expiration(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	var loads int
	load := func(ctx context.Context) (int, error) {
		loads++
		return loads, nil
	}

	v, _ := c.GetOrLoad(context.Background(), "k", load)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	v, _ = c.GetOrLoad(context.Background(), "k", load)
	assert.Equal(t, 2, v)
}

func TestCache_ZeroTTLDisables(t *testing.T) {
	c := New[int](0)
	var loads int
	load := func(ctx context.Context) (int, error) {
		loads++
		return loads, nil
	}

	_, _ = c.GetOrLoad(context.Background(), "k", load)
	_, _ = c.GetOrLoad(context.Background(), "k", load)
	assert.Equal(t, 2, loads)
}

func TestCache_ErrorNotCached(t *testing.T) {
	c := New[int](time.Minute)
	calls := 0
	load := func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("boom")
		}
		return 7, nil
	}

	_, err := c.GetOrLoad(context.Background(), "k", load)
	assert.EqualError(t, err, "boom")

	v, err := c.GetOrLoad(context.Background(), "k", load)
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int](time.Minute)
	var loads int
	load := func(ctx context.Context) (int, error) {
		loads++
		return loads, nil
	}

	_, _ = c.GetOrLoad(context.Background(), "k", load)
	c.Invalidate("k")
	v, _ := c.GetOrLoad(context.Background(), "k", load)
	assert.Equal(t, 2, v)
}

func TestCache_SingleFlight(t *testing.T) {
	c := New[int](time.Minute)
	var loads int32
	release := make(chan struct{})

	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrLoad(context.Background(), "k", load)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}
