package sealbox

// ProgressFunc receives advisory progress updates during long operations.
// stage is a short label ("decrypt", "encrypt", "seal"); percent is 0-100.
//
// Callbacks are advisory only: they run synchronously but must never block,
// and a panicking callback is swallowed rather than failing the operation.
type ProgressFunc func(stage string, percent int)

// report invokes fn safely. Panics in user callbacks never propagate.
func (fn ProgressFunc) report(stage string, percent int) {
	if fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	fn(stage, percent)
}

// scaled returns a ProgressFunc that maps 0-100 input onto [lo, hi],
// used to stage sub-operation progress inside a larger operation.
func (fn ProgressFunc) scaled(lo, hi int) ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(stage string, percent int) {
		fn.report(stage, lo+(hi-lo)*percent/100)
	}
}
