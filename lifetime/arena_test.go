package lifetime_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/lifetime"
)

type owner struct{ name string }

func TestOwnedIsAlwaysAlive(t *testing.T) {
	o := &owner{name: "a"}
	ref := lifetime.Owned(o)

	got, ok := ref.Target()
	require.True(t, ok)
	require.Same(t, o, got)
	require.True(t, ref.Alive())
	require.Equal(t, event.Strong, ref.Strength())
}

func TestBorrowAndRelease(t *testing.T) {
	a := lifetime.NewArena()
	o := &owner{name: "a"}

	ref, err := a.Borrow(o)
	require.NoError(t, err)
	require.Equal(t, event.Weak, ref.Strength())
	require.True(t, ref.Alive())

	again, err := a.Borrow(o)
	require.NoError(t, err)
	require.Equal(t, 1, a.Live(), "same target must share a slot")

	require.True(t, a.Release(o))
	assert.False(t, ref.Alive())
	assert.False(t, again.Alive())

	_, ok := ref.Target()
	assert.False(t, ok)
	assert.False(t, a.Release(o), "second release is a no-op")
	assert.Equal(t, 0, a.Live())
}

func TestRecycledSlotDoesNotReviveStaleRef(t *testing.T) {
	a := lifetime.NewArena()
	first := &owner{name: "first"}
	second := &owner{name: "second"}

	stale, err := a.Borrow(first)
	require.NoError(t, err)
	require.True(t, a.Release(first))

	fresh, err := a.Borrow(second)
	require.NoError(t, err)

	assert.False(t, stale.Alive())

	got, ok := fresh.Target()
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestBorrowRejectsUnusableTargets(t *testing.T) {
	a := lifetime.NewArena()

	_, err := a.Borrow(nil)
	require.ErrorIs(t, err, berr.ErrConfiguration)

	type withSlice struct{ items []string }

	_, err = a.Borrow(withSlice{})
	require.ErrorIs(t, err, berr.ErrConfiguration)
	assert.False(t, a.Release(withSlice{}))
}

func TestConcurrentBorrowRelease(t *testing.T) {
	a := lifetime.NewArena()
	owners := make([]*owner, 64)

	for i := range owners {
		owners[i] = &owner{}
	}

	var wg sync.WaitGroup

	for _, o := range owners {
		wg.Add(1)

		go func(o *owner) {
			defer wg.Done()

			ref, err := a.Borrow(o)
			if err != nil {
				t.Errorf("borrow: %v", err)
				return
			}

			if !ref.Alive() {
				t.Errorf("fresh ref must be alive")
			}

			a.Release(o)

			if ref.Alive() {
				t.Errorf("released ref must be dead")
			}
		}(o)
	}

	wg.Wait()
	require.Equal(t, 0, a.Live())
}
