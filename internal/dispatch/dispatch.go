// Package dispatch drives the classification of a full comment export:
// fixed-size batches with one worker per pending item, periodic
// checkpointing, and a cooperative stop protocol. A run always ends in
// exactly one terminal state; callers branch on it instead of unwinding
// through errors.
package dispatch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/livechat-analyzer/internal/checkpoint"
	"github.com/fpang/livechat-analyzer/internal/classify"
	"github.com/fpang/livechat-analyzer/internal/comment"
	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/metrics"
	"github.com/fpang/livechat-analyzer/internal/ratelimit"
	"github.com/fpang/livechat-analyzer/internal/usage"
)

// State is the terminal condition of a run.
type State string

const (
	// StateCompleted means every item has a result.
	StateCompleted State = "COMPLETED"
	// StateCancelled means the context was cancelled; results merged so
	// far are checkpointed and returned.
	StateCancelled State = "CANCELLED"
	// StateFailed means classification hit an unrecoverable error
	// (rate-limit retry exhaustion); progress is checkpointed for resume.
	StateFailed State = "FAILED"
)

// Classifier is the per-comment labeling dependency.
type Classifier interface {
	Classify(ctx context.Context, cm comment.Comment) (classify.Result, error)
}

// ItemResult pairs an input comment with its resolved labels.
type ItemResult struct {
	Comment   comment.Comment
	Attribute string
	Sentiment string
}

// Report is the outcome of a run. Results holds only classified items,
// in input order; on StateCompleted it covers every input.
type Report struct {
	State   State
	Results []ItemResult
	Usage   usage.Usage
	Err     error
}

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	// BatchSize is the number of comments classified concurrently.
	BatchSize int
	// FlushEvery checkpoints after this many new completions.
	FlushEvery int
	// Pause separates consecutive batches.
	Pause time.Duration

	// Store persists progress; nil disables checkpointing.
	Store *checkpoint.Store
	// Limiter throttles outbound classification calls; nil disables.
	Limiter *ratelimit.Limiter

	// OnProgress observes the running completion count after each merge.
	OnProgress func(done, total int)
	// Cancelled is polled at batch boundaries and before each merge; a
	// true return stops the run cooperatively, same as cancelling ctx.
	Cancelled func() bool

	RunID string
}

const (
	defaultBatchSize  = 8
	defaultFlushEvery = 10
	defaultPause      = 100 * time.Millisecond
)

// Dispatcher runs classification over comment sequences.
type Dispatcher struct {
	classifier Classifier
	opts       Options
	log        zerolog.Logger

	pause func(time.Duration)
}

// New returns a Dispatcher. Zero-valued options fall back to defaults.
func New(classifier Classifier, opts Options, log zerolog.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	if opts.Pause <= 0 {
		opts.Pause = defaultPause
	}
	return &Dispatcher{
		classifier: classifier,
		opts:       opts,
		log:        log,
		pause:      time.Sleep,
	}
}

type outcome struct {
	index  int
	result classify.Result
	err    error
}

// Run classifies items and returns a Report with a terminal state.
// Progress is resumed from the configured checkpoint when its input
// fingerprint matches; a stale checkpoint is discarded. Run is
// idempotent over already-classified items: resumed indices are never
// re-sent to the model.
func (d *Dispatcher) Run(ctx context.Context, items []comment.Comment) Report {
	started := time.Now()
	fp := checkpoint.Fingerprint(items)
	results := make(map[int]classify.Result, len(items))
	var acc usage.Accumulator

	d.restore(fp, results)
	if len(results) > 0 && d.opts.OnProgress != nil {
		d.opts.OnProgress(len(results), len(items))
	}

	stop := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return d.opts.Cancelled != nil && d.opts.Cancelled()
	}

	state := StateCompleted
	var runErr error
	sinceFlush := 0

outer:
	for start := 0; start < len(items); start += d.opts.BatchSize {
		if stop() {
			state = StateCancelled
			break
		}

		end := min(start+d.opts.BatchSize, len(items))
		pending := make([]comment.Comment, 0, end-start)
		for _, cm := range items[start:end] {
			if _, done := results[cm.Index]; !done {
				pending = append(pending, cm)
			}
		}
		if len(pending) == 0 {
			continue
		}

		// Buffered to len(pending): workers never block on send, so an
		// early exit below cannot leak a goroutine.
		ch := make(chan outcome, len(pending))
		batchCtx, stopBatch := context.WithCancel(ctx)
		for _, cm := range pending {
			go d.work(batchCtx, cm, ch)
		}

		for range pending {
			// Cancellation wins over a ready completion so a stop request
			// never merges results raced in after it.
			if stop() {
				stopBatch()
				state = StateCancelled
				break outer
			}
			select {
			case <-ctx.Done():
				stopBatch()
				state = StateCancelled
				break outer
			case o := <-ch:
				if o.err != nil {
					switch {
					case errors.Is(o.err, context.Canceled), errors.Is(o.err, context.DeadlineExceeded):
						stopBatch()
						state = StateCancelled
						break outer
					case errors.Is(o.err, classify.ErrRateLimited):
						stopBatch()
						state = StateFailed
						runErr = o.err
						break outer
					default:
						// One broken item must not abort the run; it gets the
						// default labels and counts as classified.
						d.log.Warn().
							Err(o.err).
							Int("index", o.index).
							Msg("Classification failed, falling back to default labels")
						o.result = classify.Result{
							Attribute: config.DefaultAttribute,
							Sentiment: config.DefaultSentiment,
						}
					}
				}
				results[o.index] = o.result
				acc.Record(o.result.Usage)
				if d.opts.OnProgress != nil {
					d.opts.OnProgress(len(results), len(items))
				}
				sinceFlush++
				if d.opts.Store != nil && sinceFlush >= d.opts.FlushEvery {
					d.flush(fp, len(items), results)
					sinceFlush = 0
				}
			}
		}
		stopBatch()

		d.log.Info().
			Int("classified", len(results)).
			Int("total", len(items)).
			Msg("Batch complete")

		if end < len(items) {
			d.pause(d.opts.Pause)
		}
	}

	if d.opts.Store != nil {
		if state == StateCompleted {
			d.opts.Store.Clear()
		} else {
			d.flush(fp, len(items), results)
		}
	}

	d.emitRunMetrics(state, len(results), len(items), time.Since(started))

	return Report{
		State:   state,
		Results: ordered(items, results),
		Usage:   acc.Snapshot(),
		Err:     runErr,
	}
}

func (d *Dispatcher) work(ctx context.Context, cm comment.Comment, ch chan<- outcome) {
	if d.opts.Limiter != nil {
		d.opts.Limiter.Acquire()
	}
	res, err := d.classifier.Classify(ctx, cm)
	ch <- outcome{index: cm.Index, result: res, err: err}
}

// restore merges a matching checkpoint into results.
func (d *Dispatcher) restore(fp uint64, results map[int]classify.Result) {
	if d.opts.Store == nil {
		return
	}
	snap, ok := d.opts.Store.Load()
	if !ok {
		return
	}
	if snap.Fingerprint != fp {
		d.log.Warn().
			Str("run_id", snap.RunID).
			Msg("Checkpoint belongs to a different input, starting fresh")
		d.opts.Store.Clear()
		return
	}
	for _, r := range snap.Records {
		results[r.Index] = classify.Result{Attribute: r.Attribute, Sentiment: r.Sentiment}
	}
	d.log.Info().
		Str("run_id", snap.RunID).
		Int("restored", len(snap.Records)).
		Int("total", snap.Total).
		Msg("Resuming from checkpoint")
}

func (d *Dispatcher) flush(fp uint64, total int, results map[int]classify.Result) {
	records := make([]checkpoint.Record, 0, len(results))
	for idx, r := range results {
		records = append(records, checkpoint.Record{
			Index:     idx,
			Attribute: r.Attribute,
			Sentiment: r.Sentiment,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })

	d.opts.Store.Save(checkpoint.Snapshot{
		RunID:       d.opts.RunID,
		SavedAt:     time.Now(),
		Fingerprint: fp,
		Total:       total,
		Records:     records,
	})
}

func (d *Dispatcher) emitRunMetrics(state State, classified, total int, elapsed time.Duration) {
	rec := metrics.New("LiveChatAnalyzer").
		Dimension("Operation", "dispatch").
		Dimension("State", string(state))
	rec.Metric("RunDurationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
	rec.Metric("CommentsClassified", float64(classified), metrics.UnitCount)
	rec.Metric("CommentsTotal", float64(total), metrics.UnitCount)
	rec.Flush()
}

// ordered projects the result map back onto input order, skipping
// unclassified items.
func ordered(items []comment.Comment, results map[int]classify.Result) []ItemResult {
	out := make([]ItemResult, 0, len(results))
	for _, cm := range items {
		r, ok := results[cm.Index]
		if !ok {
			continue
		}
		out = append(out, ItemResult{
			Comment:   cm,
			Attribute: r.Attribute,
			Sentiment: r.Sentiment,
		})
	}
	return out
}
