package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-genstudio/internal/provider"
)

// DefaultPollInterval is how often a pending job is checked.
const DefaultPollInterval = 10 * time.Second

// Recorder observes finished generation jobs.
type Recorder interface {
	ObserveVideoJob(elapsed time.Duration, err error)
}

// Result is the outcome of one generated video.
type Result struct {
	Index int
	Data  []byte
	Err   error
}

// Generator runs several generation jobs for one request in parallel.
type Generator struct {
	provider provider.VideoGenerator
	interval time.Duration
	log      *slog.Logger
	recorder Recorder
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.interval = d
		}
	}
}

func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

func WithJobRecorder(r Recorder) GeneratorOption {
	return func(g *Generator) { g.recorder = r }
}

// NewGenerator wraps p.
func NewGenerator(p provider.VideoGenerator, opts ...GeneratorOption) *Generator {
	g := &Generator{provider: p, interval: DefaultPollInterval, log: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate starts count jobs for req, polls each until it finishes and
// downloads the result. Jobs are independent: one failure leaves the others
// running. Results are ordered by index.
func (g *Generator) Generate(ctx context.Context, req provider.VideoRequest, count int, progress provider.Progress) []Result {
	count = max(1, count)
	results := make([]Result, count)

	var (
		mu  sync.Mutex
		eg  errgroup.Group
		rep = func(format string, args ...any) {
			mu.Lock()
			defer mu.Unlock()
			progress.Report(format, args...)
		}
	)

	for i := range count {
		eg.Go(func() error {
			start := time.Now()
			data, err := g.run(ctx, req, i, count, rep)
			if g.recorder != nil {
				g.recorder.ObserveVideoJob(time.Since(start), err)
			}
			if err != nil {
				g.log.WarnContext(ctx, "video job failed",
					slog.Int("video", i+1),
					slog.String("error", err.Error()),
				)
			}
			results[i] = Result{Index: i, Data: data, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (g *Generator) run(ctx context.Context, req provider.VideoRequest, i, n int, report func(string, ...any)) ([]byte, error) {
	report("Starting video %d/%d...", i+1, n)

	job, err := g.provider.StartVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	g.log.InfoContext(ctx, "video job started", slog.String("operation", job.Name), slog.Int("video", i+1))

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for attempt := 1; !job.Done; attempt++ {
		report("Video %d/%d is processing... (check %d)", i+1, n, attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		job, err = g.provider.PollVideo(ctx, job)
		if err != nil {
			return nil, err
		}
	}

	if job.URI == "" {
		return nil, fmt.Errorf("no download link for video %d", i+1)
	}

	report("Downloading video %d/%d...", i+1, n)
	return g.provider.DownloadVideo(ctx, job)
}
