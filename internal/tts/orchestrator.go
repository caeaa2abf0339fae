// Package tts turns chunked text into speech through a pluggable
// synthesizer and keeps the results in chunk order.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-genstudio/internal/audio"
)

// Synthesizer renders one piece of text into a WAV container.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

// Recorder observes each settled synthesis call.
type Recorder interface {
	ObserveSynthesis(elapsed time.Duration, err error)
}

// Segment is one unit of work tagged with its presentation position.
type Segment struct {
	Index int
	Text  string
}

// ChunkResult is the settled outcome of one segment.
type ChunkResult struct {
	Index   int
	Text    string
	WAV     []byte
	Err     error
	Elapsed time.Duration
}

// OK reports whether the segment produced audio.
func (r ChunkResult) OK() bool {
	return r.Err == nil && r.WAV != nil
}

// ChunkError ties a synthesis failure to its segment index.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ChunkIndex returns the zero-based index of the failed segment.
func (e *ChunkError) ChunkIndex() int { return e.Index }

// Results holds every settled segment sorted by Index.
type Results []ChunkResult

// Succeeded counts segments that produced audio.
func (r Results) Succeeded() int {
	n := 0
	for _, c := range r {
		if c.OK() {
			n++
		}
	}
	return n
}

// Failed returns the failed segments in order.
func (r Results) Failed() []ChunkResult {
	var out []ChunkResult
	for _, c := range r {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// Clips converts the results into merge input.
func (r Results) Clips() []audio.Clip {
	clips := make([]audio.Clip, len(r))
	for i, c := range r {
		clips[i] = audio.Clip{Index: c.Index, WAV: c.WAV, Err: c.Err}
	}
	return clips
}

// Merge joins the successful segments into one WAV.
func (r Results) Merge() ([]byte, error) {
	return audio.Merge(r.Clips())
}

// Orchestrator runs one synthesis per segment concurrently.
type Orchestrator struct {
	synth       Synthesizer
	concurrency int
	log         *slog.Logger
	recorder    Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency bounds the number of in-flight synthesis calls. Zero or a
// negative value launches every segment at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithLogger sets the logger used for per-chunk events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRecorder reports every settled call to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator returns an Orchestrator backed by s.
func NewOrchestrator(s Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		synth: s,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run synthesizes chunks, indexing them by position.
func (o *Orchestrator) Run(ctx context.Context, chunks []string, onResult func(ChunkResult)) Results {
	segments := make([]Segment, len(chunks))
	for i, c := range chunks {
		segments[i] = Segment{Index: i, Text: c}
	}
	return o.RunSegments(ctx, segments, onResult)
}

// RunSegments synthesizes every segment concurrently. A failing segment
// never cancels its siblings. onResult, when non-nil, is called once per
// segment as soon as it settles, in completion order; calls are serialized.
// The returned Results are sorted by Index.
func (o *Orchestrator) RunSegments(ctx context.Context, segments []Segment, onResult func(ChunkResult)) Results {
	var (
		mu      sync.Mutex
		results = make(Results, 0, len(segments))
		g       errgroup.Group
	)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	for _, seg := range segments {
		g.Go(func() error {
			res := o.synthesize(ctx, seg)

			mu.Lock()
			defer mu.Unlock()

			results = append(results, res)
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	o.log.InfoContext(ctx, "chunk synthesis finished",
		slog.Int("chunks", len(results)),
		slog.Int("succeeded", results.Succeeded()),
	)
	return results
}

func (o *Orchestrator) synthesize(ctx context.Context, seg Segment) ChunkResult {
	res := ChunkResult{Index: seg.Index, Text: seg.Text}
	start := time.Now()

	wav, err := o.synth.Synthesize(ctx, seg.Text)
	if err == nil && wav == nil {
		err = fmt.Errorf("synthesizer returned no audio")
	}

	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = &ChunkError{Index: seg.Index, Err: err}
		o.log.WarnContext(ctx, "chunk synthesis failed",
			slog.Int("chunk", seg.Index),
			slog.Int("text_len", len(seg.Text)),
			slog.Int64("duration_ms", res.Elapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
	} else {
		res.WAV = wav
		o.log.DebugContext(ctx, "chunk synthesized",
			slog.Int("chunk", seg.Index),
			slog.Int("bytes", len(wav)),
			slog.Int64("duration_ms", res.Elapsed.Milliseconds()),
		)
	}

	if o.recorder != nil {
		o.recorder.ObserveSynthesis(res.Elapsed, err)
	}
	return res
}
