package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// FirstN is a zerolog.Sampler that passes only the first Max events and
// drops the rest. It replaces ad hoc "log the first ten" counters: the
// caller constructs one, derives a sampled logger, and hands that logger
// to the component, so the cutoff state lives with the run instead of in
// package globals.
//
//	dbg := log.Logger.Sample(&logging.FirstN{Max: 10})
type FirstN struct {
	Max  uint64
	seen atomic.Uint64
}

// Sample implements zerolog.Sampler.
func (s *FirstN) Sample(_ zerolog.Level) bool {
	return s.seen.Add(1) <= s.Max
}

var _ zerolog.Sampler = (*FirstN)(nil)
