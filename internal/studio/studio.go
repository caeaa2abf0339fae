package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/go-genstudio/internal/credentials"
	"github.com/example/go-genstudio/internal/history"
	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/provider/pocket"
	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/tts"
	"github.com/example/go-genstudio/internal/video"
)

// VoiceCloner exports local voices and speaks with them.
type VoiceCloner interface {
	provider.SpeechSynthesizer
	CloneVoice(ctx context.Context, req pocket.CloneRequest) (tts.LocalVoice, error)
}

// Providers are the backends a Studio dispatches to. Any may be nil; a
// request needing a missing backend fails.
type Providers struct {
	Prompts  provider.PromptWriter
	Images   provider.ImageGenerator
	Speech   provider.SpeechSynthesizer
	Dialogue provider.DialogueSynthesizer
	Text     provider.TextGenerator
	Video    provider.VideoGenerator
	Cloner   VoiceCloner
	Reencode *video.Reencoder
}

// CredentialStore holds the premium flag. *credentials.Store implements it.
type CredentialStore interface {
	Status() (*credentials.Status, error)
	SetPremium(p credentials.Premium) error
	Clear() error
}

// HistoryRecorder stores finished generations. *history.Store implements it.
type HistoryRecorder interface {
	Add(ctx context.Context, item history.Item) (history.Item, error)
}

// Studio runs requests. It is safe for concurrent use.
type Studio struct {
	providers   Providers
	creds       CredentialStore
	history     HistoryRecorder
	media       *media.Store
	log         *slog.Logger
	chunkLimit  int
	chunkOpts   text.ChunkOptions
	concurrency int
	recorder    tts.Recorder
	videoOpts   []video.GeneratorOption
	supersede   *Supersede
	now         func() time.Time

	mu      sync.Mutex
	outputs map[string]*media.Group
}

// Option configures a Studio.
type Option func(*Studio)

func WithCredentials(c CredentialStore) Option { return func(s *Studio) { s.creds = c } }

func WithHistory(h HistoryRecorder) Option { return func(s *Studio) { s.history = h } }

func WithMedia(m *media.Store) Option { return func(s *Studio) { s.media = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Studio) { s.log = l } }

// WithChunking sets the speech chunk limit and break options.
func WithChunking(limit int, opts text.ChunkOptions) Option {
	return func(s *Studio) {
		if limit > 0 {
			s.chunkLimit = limit
		}
		s.chunkOpts = opts
	}
}

// WithConcurrency bounds parallel chunk synthesis; 0 is unbounded.
func WithConcurrency(n int) Option { return func(s *Studio) { s.concurrency = n } }

// WithRecorder observes every chunk synthesis.
func WithRecorder(r tts.Recorder) Option { return func(s *Studio) { s.recorder = r } }

// WithVideoOptions configures the video job runner.
func WithVideoOptions(opts ...video.GeneratorOption) Option {
	return func(s *Studio) { s.videoOpts = append(s.videoOpts, opts...) }
}

// New returns a Studio over p.
func New(p Providers, opts ...Option) *Studio {
	s := &Studio{
		providers:  p,
		media:      media.NewStore(0),
		log:        slog.Default(),
		chunkLimit: text.DefaultChunkLimit,
		chunkOpts:  text.DefaultChunkOptions(),
		supersede:  NewSupersede(),
		now:        time.Now,
		outputs:    make(map[string]*media.Group),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Media returns the store holding every output.
func (s *Studio) Media() *media.Store { return s.media }

// Output is one stored media resource produced by a request.
type Output struct {
	MediaID  string `json:"media_id"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// SpeechPart is the outcome of one chunk or scene.
type SpeechPart struct {
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Output *Output `json:"output,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Result is what a request produced. Only the fields of its kind are set.
type Result struct {
	Kind       Kind                    `json:"kind"`
	Prompts    *provider.Prompts       `json:"prompts,omitempty"`
	Outputs    []Output                `json:"outputs,omitempty"`
	Parts      []SpeechPart            `json:"parts,omitempty"`
	Merged     *Output                 `json:"merged,omitempty"`
	Storyboard *provider.Storyboard    `json:"storyboard,omitempty"`
	Script     *provider.YouTubeScript `json:"script,omitempty"`
	Text       string                  `json:"text,omitempty"`
	Voice      *tts.LocalVoice         `json:"voice,omitempty"`
	Errors     []string                `json:"errors,omitempty"`
}

// premium reports whether req spends premium quota. Local video editing
// and storyboard narration never reach a premium endpoint.
func premium(req Request) bool {
	switch req.(type) {
	case VideoEdit, Narration:
		return false
	default:
		return req.Kind().Premium()
	}
}

// Do validates and runs req. A new request of the same kind cancels the
// previous one and releases its outputs. Errors are returned as
// *provider.Error with a user-facing message.
func (s *Studio) Do(ctx context.Context, req Request, progress provider.Progress) (*Result, error) {
	return s.DoSession(ctx, "", req, progress)
}

// DoSession is Do with supersede and output release scoped to session, so
// independent clients do not cancel each other.
func (s *Studio) DoSession(ctx context.Context, session string, req Request, progress provider.Progress) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := string(req.Kind())
	if session != "" {
		key = session + "/" + key
	}

	isPremium := premium(req)
	status := s.status()
	if isPremium && status != nil && status.Premium == credentials.PremiumNo {
		return nil, &provider.Error{Kind: provider.KindPermission, Message: provider.ErrPremiumDisabled.Error(), Err: provider.ErrPremiumDisabled}
	}

	ctx, done := s.supersede.Begin(ctx, key)
	out := s.beginOutputs(key)

	start := s.now()
	res, err := s.dispatch(ctx, req, out, progress)
	current := done()

	if err == nil && !current {
		err = context.Canceled
	}
	if err != nil {
		out.Clear()
		return nil, s.fail(ctx, req, isPremium, err)
	}

	res.Kind = req.Kind()
	if isPremium && status != nil && status.Premium == credentials.PremiumUnknown {
		s.setPremium(credentials.PremiumYes)
	}

	s.log.InfoContext(ctx, "request finished",
		slog.String("kind", string(req.Kind())),
		slog.Int("outputs", len(res.Outputs)),
		slog.Int64("duration_ms", s.now().Sub(start).Milliseconds()),
	)
	s.record(ctx, req, res)
	return res, nil
}

// Reset releases every output and cancels nothing in flight.
func (s *Studio) Reset() {
	s.mu.Lock()
	groups := s.outputs
	s.outputs = make(map[string]*media.Group)
	s.mu.Unlock()

	for _, g := range groups {
		g.Clear()
	}
}

func (s *Studio) beginOutputs(k string) *media.Group {
	g := media.NewGroup(s.media)

	s.mu.Lock()
	prev := s.outputs[k]
	s.outputs[k] = g
	s.mu.Unlock()

	if prev != nil {
		prev.Clear()
	}
	return g
}

func (s *Studio) status() *credentials.Status {
	if s.creds == nil {
		return nil
	}
	st, err := s.creds.Status()
	if err != nil {
		s.log.Warn("reading credential status", slog.String("error", err.Error()))
		return nil
	}
	return st
}

func (s *Studio) setPremium(p credentials.Premium) {
	if s.creds == nil {
		return
	}
	if err := s.creds.SetPremium(p); err != nil {
		s.log.Warn("updating premium status", slog.String("error", err.Error()))
	}
}

func (s *Studio) fail(ctx context.Context, req Request, isPremium bool, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	classified := provider.Classify(err, isPremium)
	switch {
	case classified.DowngradesPremium():
		s.setPremium(credentials.PremiumNo)
	case classified.ClearsCredential() && s.creds != nil:
		if cerr := s.creds.Clear(); cerr != nil {
			s.log.Warn("clearing credential", slog.String("error", cerr.Error()))
		}
	}

	s.log.WarnContext(ctx, "request failed",
		slog.String("kind", string(req.Kind())),
		slog.String("class", classified.Kind.String()),
		slog.String("error", err.Error()),
	)
	return classified
}

func (s *Studio) record(ctx context.Context, req Request, res *Result) {
	if s.history == nil {
		return
	}

	preview, ok := s.preview(res)
	if !ok {
		return
	}

	state, err := json.Marshal(req)
	if err != nil || len(state) > maxHistoryState {
		state = nil
	}

	if _, err := s.history.Add(ctx, history.Item{
		Timestamp: s.now(),
		Kind:      string(req.Kind()),
		Preview:   preview,
		State:     state,
	}); err != nil {
		s.log.WarnContext(ctx, "recording history", slog.String("error", err.Error()))
	}
}

// maxHistoryState drops request state carrying large inline media.
const maxHistoryState = 64 << 10

func (s *Studio) preview(res *Result) (history.Preview, bool) {
	switch {
	case res.Storyboard != nil:
		return history.Preview{Type: history.PreviewStoryboard, Data: res.Storyboard.Title}, true
	case res.Script != nil && len(res.Script.Titles) > 0:
		return history.Preview{Type: history.PreviewText, Data: res.Script.Titles[0]}, true
	case res.Text != "":
		return history.Preview{Type: history.PreviewText, Data: truncate(res.Text, 200)}, true
	case len(res.Outputs) > 0:
		o := res.Outputs[0]
		switch {
		case strings.HasPrefix(o.MIMEType, "image/"):
			return history.Preview{Type: history.PreviewImage, Data: o.Filename}, true
		case strings.HasPrefix(o.MIMEType, "video/"):
			return history.Preview{Type: history.PreviewVideo, Data: o.Filename}, true
		}
		return history.Preview{Type: history.PreviewText, Data: o.Filename}, true
	case res.Merged != nil:
		return history.Preview{Type: history.PreviewText, Data: res.Merged.Filename}, true
	}
	return history.Preview{}, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func (s *Studio) store(g *media.Group, mimeType, filename string, data []byte) Output {
	return Output{
		MediaID:  g.Add(mimeType, filename, data),
		Filename: filename,
		MIMEType: mimeType,
		Size:     len(data),
	}
}

// mergeRecorder is implemented by recorders that also count merged clips.
type mergeRecorder interface {
	ObserveMerge(clips int)
}

func (s *Studio) observeMerge(clips int) {
	if mr, ok := s.recorder.(mergeRecorder); ok {
		mr.ObserveMerge(clips)
	}
}

func missing(what string) error {
	return fmt.Errorf("no %s backend configured", what)
}
