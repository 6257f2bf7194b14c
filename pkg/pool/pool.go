// Package pool provides fixed-capacity index pools.
//
// A pool owns a flat slice of slots allocated once at construction and hands
// out integer indices into it. Two strategies are available: FreeList keeps
// indices stable and recycles freed slots through an intrusive linked list;
// Compact keeps live slots contiguous by moving the last slot into every hole.
package pool

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/fixedtree/pkg/safeconv"
)

// Sentinel errors.
var (
	ErrUnknownKind   = errors.New("unknown pool kind")
	ErrStateMismatch = errors.New("pool state does not match pool")
)

// Kind selects the slot management strategy.
type Kind uint8

const (
	// FreeList recycles slots through a linked list; indices never move.
	FreeList Kind = iota
	// Compact keeps live slots in [0, Len()); freeing moves the last slot.
	Compact
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case FreeList:
		return "freelist"
	case Compact:
		return "compact"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses the name produced by Kind.String.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "freelist", "free_list", "free-list":
		return FreeList, nil
	case "compact", "compacting":
		return Compact, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Null returns the sentinel index of type I, meaning "no slot".
func Null[I constraints.Unsigned]() I {
	return safeconv.MaxOf[I]()
}

// Pool is a fixed-capacity store of values addressed by index.
//
// Pools are not safe for concurrent use.
type Pool[I constraints.Unsigned, T any] interface {
	// Allocate stores value in a free slot and returns its index.
	// REQUIRES: !Full().
	Allocate(value T) I
	// Free releases slot i and returns the index whose content was moved
	// into i. When it differs from i, the element previously stored there
	// now lives at i.
	// REQUIRES: Live(i).
	Free(i I) I
	// At returns a pointer to the value in slot i. The pointer is valid
	// until the next Free.
	// REQUIRES: Live(i).
	At(i I) *T
	// Live reports whether slot i holds a value.
	Live(i I) bool
	Len() int
	Cap() int
	Full() bool
	// Clear frees every slot.
	Clear()
	Kind() Kind
	// State exports the slot bookkeeping, excluding values.
	State() State[I]
	// Restore replaces the slot bookkeeping with a previously exported state.
	// Values of live slots are zeroed and must be written through At.
	Restore(state State[I]) error
}

// State is the value-free bookkeeping of a pool.
type State[I constraints.Unsigned] struct {
	// Links holds the free-list link of every slot (Null for live slots).
	// Empty for Compact pools.
	Links []I
	Len   int
	Head  I
	Kind  Kind
}

// New creates a pool of the requested kind.
func New[I constraints.Unsigned, T any](kind Kind, capacity int) Pool[I, T] {
	switch kind {
	case FreeList:
		return NewFreeList[I, T](capacity)
	case Compact:
		return NewCompact[I, T](capacity)
	default:
		panic(fmt.Sprintf("pool: %v", kind))
	}
}

func checkCapacity[I constraints.Unsigned](capacity int) {
	if capacity < 0 || !safeconv.FitsIndex[I](capacity) {
		panic(fmt.Sprintf("pool: capacity %d does not fit the index type", capacity))
	}
}

func doAssert(condition bool) {
	if !condition {
		panic("pool internal assertion failed")
	}
}
