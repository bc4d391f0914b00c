package lifetime

import (
	"fmt"
	"reflect"
	"sync"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// Ref is a handle to a subscriber's target object.
type Ref interface {
	// Target returns the target and whether it is still reachable.
	Target() (any, bool)
	Alive() bool
	Strength() event.ReferenceStrength
}

type owned struct{ target any }

// Owned returns a Ref that keeps target alive for as long as the Ref itself is held.
func Owned(target any) Ref { return owned{target: target} }

func (o owned) Target() (any, bool)               { return o.target, true }
func (o owned) Alive() bool                       { return true }
func (o owned) Strength() event.ReferenceStrength { return event.Strong }

// Arena hands out borrowed references backed by numbered slots.
// A slot stays live until its target is released; released slots are recycled
// with a bumped generation so stale refs never see the new occupant.
//
// Arena is concurrency-safe.
type Arena struct {
	mu    sync.RWMutex
	slots []slot
	free  []int
	index map[any]int
}

type slot struct {
	target any
	gen    uint64
	live   bool
}

// NewArena constructs an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[any]int)}
}

// Borrow returns a borrowed Ref for target. Borrowing the same live target twice
// yields refs to the same slot. Targets must be comparable.
func (a *Arena) Borrow(target any) (Ref, error) {
	ref, _, err := a.Acquire(target)
	return ref, err
}

// Acquire is Borrow that also reports whether a new slot was taken for target,
// so a caller that fails afterwards can undo it with Release.
func (a *Arena) Acquire(target any) (Ref, bool, error) {
	if target == nil {
		return nil, false, fmt.Errorf("borrow <nil>: %w", berr.ErrConfiguration)
	}

	if !reflect.TypeOf(target).Comparable() {
		return nil, false, fmt.Errorf("borrow %T: target is not comparable: %w", target, berr.ErrConfiguration)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if i, ok := a.index[target]; ok {
		return borrowed{arena: a, slot: i, gen: a.slots[i].gen}, false, nil
	}

	var i int
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[i].target = target
		a.slots[i].live = true
	} else {
		i = len(a.slots)
		a.slots = append(a.slots, slot{target: target, live: true})
	}

	a.index[target] = i

	return borrowed{arena: a, slot: i, gen: a.slots[i].gen}, true, nil
}

// Release marks target's slot dead. Every ref borrowed for it reports Alive() == false
// from now on. It returns false if target was not borrowed.
func (a *Arena) Release(target any) bool {
	if target == nil || !reflect.TypeOf(target).Comparable() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[target]
	if !ok {
		return false
	}

	delete(a.index, target)

	s := &a.slots[i]
	s.target = nil
	s.live = false
	s.gen++
	a.free = append(a.free, i)

	return true
}

// Live returns the number of live slots.
func (a *Arena) Live() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.index)
}

func (a *Arena) get(i int, gen uint64) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if i >= len(a.slots) {
		return nil, false
	}

	s := a.slots[i]
	if !s.live || s.gen != gen {
		return nil, false
	}

	return s.target, true
}

type borrowed struct {
	arena *Arena
	slot  int
	gen   uint64
}

func (b borrowed) Target() (any, bool)               { return b.arena.get(b.slot, b.gen) }
func (b borrowed) Strength() event.ReferenceStrength { return event.Weak }

func (b borrowed) Alive() bool {
	_, ok := b.arena.get(b.slot, b.gen)
	return ok
}
