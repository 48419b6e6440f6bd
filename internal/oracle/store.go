package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultSampleCapacity is the initial ring size a pool can grow into without
// an explicit Grow call.
const DefaultSampleCapacity = 24

var (
	// ErrAlreadyEnabled is returned when initializing a pool twice.
	ErrAlreadyEnabled = errors.New("oracle: pool already enabled")
	// ErrNotEnabled is returned for writes or reads against a pool that was
	// never initialized.
	ErrNotEnabled = errors.New("oracle: pool not enabled")
	// ErrTargetTooOld is returned when a lookback predates the oldest
	// retained observation.
	ErrTargetTooOld = errors.New("oracle: lookback target predates retained history")
)

// Observation is a single time-stamped, truncation-aware tick sample.
type Observation struct {
	BlockTimestamp uint32 `json:"block_timestamp"`
	Tick           int32  `json:"tick"`
	TickCumulative int64  `json:"tick_cumulative"`
	Initialized    bool   `json:"initialized"`
}

// State describes the ring position for a pool.
type State struct {
	Index           uint16 `json:"index"`
	Cardinality     uint16 `json:"cardinality"`
	CardinalityNext uint16 `json:"cardinality_next"`
}

type poolRing struct {
	obs   []Observation
	state State

	// Closing tick of the previous time unit, maintained for per-block
	// capping. Zero value is the seed tick until the first unit rollover.
	unitStart     uint32
	unitStartTick int32
}

// Store keeps one truncated-tick observation ring per pool.
//
// Writes are serialized per store; reads only take the read lock and never
// observe a partially applied write.
type Store struct {
	mu     sync.RWMutex
	pools  map[common.Hash]*poolRing
	logger *zap.Logger
}

// NewStore builds an empty observation store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pools:  make(map[common.Hash]*poolRing),
		logger: logger,
	}
}

// Initialize seeds slot 0 for a pool and enables the ring.
func (s *Store) Initialize(pool common.Hash, startTimestamp uint32, startTick int32) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ring, ok := s.pools[pool]; ok && ring.state.Cardinality != 0 {
		return ring.state, fmt.Errorf("%w: pool %s", ErrAlreadyEnabled, pool.Hex())
	}

	ring := &poolRing{
		obs: make([]Observation, DefaultSampleCapacity),
		state: State{
			Index:           0,
			Cardinality:     1,
			CardinalityNext: 1,
		},
		unitStart:     startTimestamp,
		unitStartTick: startTick,
	}
	ring.obs[0] = Observation{
		BlockTimestamp: startTimestamp,
		Tick:           startTick,
		Initialized:    true,
	}
	s.pools[pool] = ring

	s.logger.Debug("oracle enabled",
		zap.String("pool", pool.Hex()),
		zap.Uint32("start_ts", startTimestamp),
		zap.Int32("start_tick", startTick),
	)
	return ring.state, nil
}

// Write records a new observation, truncating the per-step movement to
// maxAbsTickMove. A write at the last recorded timestamp is a no-op. The
// returned tick is the recorded (possibly truncated) tick, and capped reports
// whether per-step truncation fired.
func (s *Store) Write(pool common.Hash, timestamp uint32, tick int32, maxAbsTickMove int32) (State, int32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return State{}, 0, false, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}

	last := ring.obs[ring.state.Index]
	if timestamp <= last.BlockTimestamp {
		// At most one observation per timestamp; out-of-order writes are
		// dropped rather than corrupting the cumulative sums.
		return ring.state, last.Tick, false, nil
	}

	truncated, capped := Classify(last.Tick, tick, maxAbsTickMove)
	elapsed := timestamp - last.BlockTimestamp

	if timestamp != ring.unitStart {
		ring.unitStart = timestamp
		ring.unitStartTick = last.Tick
	}

	// Grow into the requested capacity only when the write lands exactly on
	// slot 0 of the extension, same as growing a live ring.
	if ring.state.CardinalityNext > ring.state.Cardinality && ring.state.Index == ring.state.Cardinality-1 {
		ring.state.Cardinality = ring.state.CardinalityNext
	}

	next := (ring.state.Index + 1) % ring.state.Cardinality
	ring.obs[next] = Observation{
		BlockTimestamp: timestamp,
		Tick:           truncated,
		TickCumulative: last.TickCumulative + int64(truncated)*int64(elapsed),
		Initialized:    true,
	}
	ring.state.Index = next

	return ring.state, truncated, capped, nil
}

// Grow raises the ring capacity for a pool. Capacity never shrinks; a request
// at or below the current cardinalityNext returns unchanged values.
func (s *Store) Grow(pool common.Hash, cardinalityNext uint16) (uint16, uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return 0, 0, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}

	old := ring.state.CardinalityNext
	if cardinalityNext <= old {
		return old, old, nil
	}

	for len(ring.obs) < int(cardinalityNext) {
		ring.obs = append(ring.obs, Observation{})
	}
	ring.state.CardinalityNext = cardinalityNext
	return old, cardinalityNext, nil
}

// LastTick returns the tick of the most recent observation.
func (s *Store) LastTick(pool common.Hash) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return 0, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}
	return ring.obs[ring.state.Index].Tick, nil
}

// UnitStartTick returns the reference tick for per-block capping at the given
// timestamp: the closing tick of the previous time unit. When no observation
// exists yet for the unit the last recorded tick from an earlier unit is the
// reference.
func (s *Store) UnitStartTick(pool common.Hash, timestamp uint32) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return 0, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}
	if timestamp == ring.unitStart {
		return ring.unitStartTick, nil
	}
	return ring.obs[ring.state.Index].Tick, nil
}

// ObservationState returns the ring position for a pool.
func (s *Store) ObservationState(pool common.Hash) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return State{}, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}
	return ring.state, nil
}

// Observe returns the truncated cumulative tick at each requested lookback.
// A lookback of zero means "now"; the newest observation is extrapolated at
// its own tick when the target is newer than the last write.
func (s *Store) Observe(pool common.Hash, now uint32, secondsAgo []uint32) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.pools[pool]
	if !ok || ring.state.Cardinality == 0 {
		return nil, fmt.Errorf("%w: pool %s", ErrNotEnabled, pool.Hex())
	}

	out := make([]int64, len(secondsAgo))
	for i, ago := range secondsAgo {
		if ago > now {
			return nil, fmt.Errorf("%w: lookback %ds exceeds clock", ErrTargetTooOld, ago)
		}
		cum, err := ring.cumulativeAt(now - ago)
		if err != nil {
			return nil, err
		}
		out[i] = cum
	}
	return out, nil
}

func (r *poolRing) cumulativeAt(target uint32) (int64, error) {
	newest := r.obs[r.state.Index]
	if target >= newest.BlockTimestamp {
		return newest.TickCumulative + int64(newest.Tick)*int64(target-newest.BlockTimestamp), nil
	}

	oldest := r.obs[(r.state.Index+1)%r.state.Cardinality]
	if !oldest.Initialized {
		oldest = r.obs[0]
	}
	if target < oldest.BlockTimestamp {
		return 0, fmt.Errorf("%w: target %d, oldest %d", ErrTargetTooOld, target, oldest.BlockTimestamp)
	}

	before, after := r.bracket(target)
	if before.BlockTimestamp == target {
		return before.TickCumulative, nil
	}
	if after.BlockTimestamp == target {
		return after.TickCumulative, nil
	}

	span := int64(after.BlockTimestamp - before.BlockTimestamp)
	offset := int64(target - before.BlockTimestamp)
	return before.TickCumulative + (after.TickCumulative-before.TickCumulative)/span*offset, nil
}

// bracket binary-searches the wrapped ring for the two observations
// surrounding target. The caller guarantees target lies within retained
// history, so the search always terminates with a valid pair.
func (r *poolRing) bracket(target uint32) (Observation, Observation) {
	lo := uint32(r.state.Index) + 1 // oldest
	hi := lo + uint32(r.state.Cardinality) - 1

	for {
		mid := (lo + hi) / 2
		before := r.obs[mid%uint32(r.state.Cardinality)]
		if !before.Initialized {
			lo = mid + 1
			continue
		}
		after := r.obs[(mid+1)%uint32(r.state.Cardinality)]

		if before.BlockTimestamp <= target && target <= after.BlockTimestamp {
			return before, after
		}
		if before.BlockTimestamp > target {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
}
