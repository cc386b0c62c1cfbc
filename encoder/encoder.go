// Package encoder abstracts an incremental wheel encoder.
package encoder

// An Encoder reports a monotonically adjusted step counter for one wheel.
// Reads are expected to be non-blocking; counter wraps are the caller's
// responsibility.
type Encoder interface {
	// Ticks returns the number of steps counted since the encoder was
	// powered, negative when the wheel has net-rotated backward.
	Ticks() (int64, error)
}
