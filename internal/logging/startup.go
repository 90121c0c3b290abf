package logging

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunLogger collects the resolved configuration of one analysis run and
// emits a single structured zerolog event summarising it. This makes it
// easy to see exactly how a run was configured when reading its log.
type RunLogger struct {
	name string

	inputs   map[string]string
	features map[string]bool
	config   map[string]string
}

// NewRunLogger creates a RunLogger for the given tool name
// (e.g. "chat-analyze").
func NewRunLogger(name string) *RunLogger {
	return &RunLogger{
		name:     name,
		inputs:   make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Input registers an input file consumed by this run. Only the path is
// logged, never the contents.
func (r *RunLogger) Input(label, path string) *RunLogger {
	r.inputs[label] = path
	return r
}

// Feature registers a boolean feature flag (e.g. "resume", "fresh").
func (r *RunLogger) Feature(name string, enabled bool) *RunLogger {
	r.features[name] = enabled
	return r
}

// Config registers a non-sensitive configuration key-value pair.
func (r *RunLogger) Config(key, value string) *RunLogger {
	r.config[key] = value
	return r
}

// Log emits a single structured INFO log event with all collected information.
func (r *RunLogger) Log() {
	evt := log.Info()

	evt = evt.Dict("tool", zerolog.Dict().
		Str("name", r.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("LIVECHAT_LOG_LEVEL")))

	if len(r.inputs) > 0 {
		evt = evt.Dict("inputs", dictFromMap(r.inputs))
	}

	if len(r.features) > 0 {
		d := zerolog.Dict()
		for k, v := range r.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(r.config) > 0 {
		evt = evt.Dict("config", dictFromMap(r.config))
	}

	evt.Msg("Run configuration resolved")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
