package oracle

// Classify compares a proposed tick against a reference tick and clamps the
// movement to maxAbsTickMove. It returns the tick that should be recorded and
// whether the movement had to be truncated.
//
// The function is pure and granularity-agnostic: the caller decides whether
// refTick is the immediately preceding observation (per-step capping) or the
// tick at the start of the current block-equivalent time unit (per-block
// capping).
func Classify(refTick, currentTick, maxAbsTickMove int32) (int32, bool) {
	if maxAbsTickMove < 0 {
		maxAbsTickMove = 0
	}

	delta := int64(currentTick) - int64(refTick)
	if delta > int64(maxAbsTickMove) {
		return refTick + maxAbsTickMove, true
	}
	if delta < -int64(maxAbsTickMove) {
		return refTick - maxAbsTickMove, true
	}
	return currentTick, false
}
