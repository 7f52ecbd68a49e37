package main

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// opTimer is a sparse.Meter that accumulates the time spent per operation.
// It belongs to a single rank and is not safe for concurrent use.
type opTimer struct {
	total map[string]time.Duration
	count map[string]int
}

func newOpTimer() *opTimer {
	return &opTimer{total: map[string]time.Duration{}, count: map[string]int{}}
}

func (t *opTimer) Observe(op string, d time.Duration) {
	t.total[op] += d
	t.count[op]++
}

// log writes one event per operation, sorted by name.
func (t *opTimer) log(l zerolog.Logger) {
	ops := make([]string, 0, len(t.total))
	for op := range t.total {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		l.Info().Str("op", op).Int("calls", t.count[op]).Dur("total", t.total[op]).Msg("vector op time")
	}
}
