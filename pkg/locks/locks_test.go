package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

func TestMemoryLockerSerialisesSameKey(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)

	release, err := locker.Acquire(context.Background(), "incident:1")
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "incident:1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusy))

	release()

	release2, err := locker.Acquire(context.Background(), "incident:1")
	require.NoError(t, err)
	release2()
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)

	r1, err := locker.Acquire(context.Background(), "incident:1")
	require.NoError(t, err)
	defer r1()

	r2, err := locker.Acquire(context.Background(), "animal:1")
	require.NoError(t, err)
	defer r2()
}

func TestMemoryLockerWaitsForRelease(t *testing.T) {
	locker := NewMemoryLocker(time.Second)

	release, err := locker.Acquire(context.Background(), "incident:1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := false
	go func() {
		defer wg.Done()
		r, err := locker.Acquire(context.Background(), "incident:1")
		if err == nil {
			acquired = true
			r()
		}
	}()

	time.Sleep(30 * time.Millisecond)
	release()
	wg.Wait()
	assert.True(t, acquired)
}
