package sparse

import "time"

// Operation names reported to a Meter.
const (
	OpDot     = "dot"
	OpLinComb = "lincomb"
	OpSpMV    = "spmv"
	OpPrecon  = "precond"
)

// Meter receives the duration of every basic operation a solver performs.
type Meter interface {
	Observe(op string, d time.Duration)
}

// NopMeter discards all observations.
type NopMeter struct{}

func (NopMeter) Observe(string, time.Duration) {}

// measure runs fn and reports its duration to m.
func measure(m Meter, op string, fn func()) {
	if _, ok := m.(NopMeter); ok {
		fn()
		return
	}
	t0 := time.Now()
	fn()
	m.Observe(op, time.Since(t0))
}
