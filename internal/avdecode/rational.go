package avdecode

// Rational mirrors an AVRational: a presentation-timestamp unit expressed as
// a fraction (num/den seconds per tick).
type Rational struct {
	Num int64
	Den int64
}

// RescaleMillis converts pts, expressed in tb units, to milliseconds relative
// to stream start. The intermediate is computed in microseconds (matching the
// original's rescale-via-microseconds trick) to keep precision for long,
// high-timebase-denominator streams without overflowing int64 at the ms step.
func RescaleMillis(pts int64, tb Rational) float64 {
	if tb.Den == 0 {
		return 0
	}
	micros := float64(pts) * float64(tb.Num) * 1_000_000.0 / float64(tb.Den)
	return micros / 1000.0
}
