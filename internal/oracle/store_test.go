package oracle

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testPool = common.HexToHash("0x01")

func TestInitializeSeedsSlotZero(t *testing.T) {
	store := NewStore(nil)

	state, err := store.Initialize(testPool, 1000, 42)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if state.Index != 0 || state.Cardinality != 1 || state.CardinalityNext != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}

	tick, err := store.LastTick(testPool)
	if err != nil {
		t.Fatalf("last tick: %v", err)
	}
	if tick != 42 {
		t.Fatalf("seed tick mismatch: %d", tick)
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.Initialize(testPool, 1000, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := store.Initialize(testPool, 2000, 0); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled, got %v", err)
	}
}

func TestWriteBeforeInitializeFails(t *testing.T) {
	store := NewStore(nil)
	if _, _, _, err := store.Write(testPool, 1000, 5, 100); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
}

func TestWriteSameTimestampIsNoop(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 1000, 10)

	state, tick, capped, err := store.Write(testPool, 1000, 999, 100)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if capped {
		t.Fatalf("no-op write must not report capped")
	}
	if tick != 10 {
		t.Fatalf("no-op write should return last recorded tick: %d", tick)
	}
	if state.Index != 0 {
		t.Fatalf("index should be unchanged: %+v", state)
	}
}

func TestWriteTruncatesAndAccumulates(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 1000, 0)

	_, tick, capped, err := store.Write(testPool, 1010, 500, 50)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !capped || tick != 50 {
		t.Fatalf("expected truncation to 50, got tick=%d capped=%v", tick, capped)
	}

	// Cumulative carries the truncated tick, not the requested one.
	cums, err := store.Observe(testPool, 1010, []uint32{0})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if cums[0] != 50*10 {
		t.Fatalf("cumulative mismatch: %d", cums[0])
	}
}

func TestWriteOutOfOrderDropped(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 1000, 0)
	store.Write(testPool, 1010, 5, 100)

	state, _, capped, err := store.Write(testPool, 1005, 50, 100)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if capped || state.Index != 1 {
		t.Fatalf("stale write must be a no-op: %+v capped=%v", state, capped)
	}
}

func TestGrowMonotonic(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 1000, 0)

	old, next, err := store.Grow(testPool, 8)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if old != 1 || next != 8 {
		t.Fatalf("grow mismatch: old=%d next=%d", old, next)
	}

	// A smaller request never shrinks.
	old, next, err = store.Grow(testPool, 4)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if old != 8 || next != 8 {
		t.Fatalf("shrink attempt must be rejected: old=%d next=%d", old, next)
	}
}

func TestRingWrapsAndEvicts(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 0, 0)
	store.Grow(testPool, 4)

	for i := uint32(1); i <= 6; i++ {
		if _, _, _, err := store.Write(testPool, i*10, int32(i), 1000); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	state, err := store.ObservationState(testPool)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Cardinality != 4 {
		t.Fatalf("cardinality should have grown to 4: %+v", state)
	}

	// Timestamp 10 fell off the ring after six writes into four slots.
	if _, err := store.Observe(testPool, 60, []uint32{55}); !errors.Is(err, ErrTargetTooOld) {
		t.Fatalf("expected ErrTargetTooOld, got %v", err)
	}

	// A retained target still resolves.
	if _, err := store.Observe(testPool, 60, []uint32{20}); err != nil {
		t.Fatalf("observe retained: %v", err)
	}
}

func TestObserveInterpolates(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 0, 0)
	store.Grow(testPool, 8)

	store.Write(testPool, 10, 100, 1000) // cumulative 100*10 = 1000
	store.Write(testPool, 30, 200, 1000) // cumulative 1000 + 200*20 = 5000

	cums, err := store.Observe(testPool, 30, []uint32{10, 0})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}

	// Target 20 is halfway between the writes at 10 and 30.
	if cums[0] != 1000+(5000-1000)/20*10 {
		t.Fatalf("interpolated cumulative mismatch: %d", cums[0])
	}
	if cums[1] != 5000 {
		t.Fatalf("newest cumulative mismatch: %d", cums[1])
	}
}

func TestObserveExtrapolatesBeyondNewest(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 0, 0)
	store.Write(testPool, 10, 100, 1000)

	cums, err := store.Observe(testPool, 25, []uint32{0})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if cums[0] != 1000+100*15 {
		t.Fatalf("extrapolated cumulative mismatch: %d", cums[0])
	}
}

func TestUnitStartTickReference(t *testing.T) {
	store := NewStore(nil)
	store.Initialize(testPool, 100, 7)
	store.Grow(testPool, 8)

	// First event of a new unit: reference is the last recorded tick.
	ref, err := store.UnitStartTick(testPool, 110)
	if err != nil {
		t.Fatalf("unit start tick: %v", err)
	}
	if ref != 7 {
		t.Fatalf("pre-observation unit reference mismatch: %d", ref)
	}

	store.Write(testPool, 110, 20, 1000)

	// Later event in the same unit: reference stays the previous unit's close.
	ref, err = store.UnitStartTick(testPool, 110)
	if err != nil {
		t.Fatalf("unit start tick: %v", err)
	}
	if ref != 7 {
		t.Fatalf("in-unit reference must be the prior close: %d", ref)
	}

	// Next unit rolls the reference forward to 20.
	ref, err = store.UnitStartTick(testPool, 120)
	if err != nil {
		t.Fatalf("unit start tick: %v", err)
	}
	if ref != 20 {
		t.Fatalf("next-unit reference mismatch: %d", ref)
	}
}
