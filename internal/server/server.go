package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/metrics"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Speaker runs speech requests. *studio.Studio implements it.
type Speaker interface {
	DoSession(ctx context.Context, session string, req studio.Request, progress provider.Progress) (*studio.Result, error)
	SpeakChunks(ctx context.Context, r studio.Speech, onResult func(tts.ChunkResult)) (tts.Results, error)
	Chunks(text string) []string
	Media() *media.Store
}

// VoiceLister returns the local voices.
type VoiceLister interface {
	ListVoices() []tts.LocalVoice
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 << 10,
		workers:        4,
		requestTimeout: 5 * time.Minute,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent speech requests.
// Zero disables the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics instruments every route and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	speaker   Speaker
	voices    VoiceLister
	opts      options
	sem       chan struct{} // semaphore for worker pool
	log       *slog.Logger
	supersede *studio.Supersede
}

// NewHandler returns an http.Handler serving the speech API.
func NewHandler(speaker Speaker, voices VoiceLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		speaker:   speaker,
		voices:    voices,
		opts:      opts,
		log:       opts.logger,
		supersede: studio.NewSupersede(),
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	h.route(mux, "GET /health", "health", h.handleHealth)
	h.route(mux, "GET /voices", "voices", h.handleVoices)
	h.route(mux, "POST /chunk", "chunk", h.handleChunk)
	h.route(mux, "POST /tts", "tts", h.handleTTS)
	h.route(mux, "POST /tts/chunks", "tts_chunks", h.handleTTSChunks)
	h.route(mux, "GET /tts/stream", "tts_stream", h.handleStream)
	h.route(mux, "GET /media/{id}", "media", h.handleMediaGet)
	h.route(mux, "DELETE /media/{id}", "media", h.handleMediaDelete)
	if opts.metrics != nil {
		mux.Handle("GET /metrics", opts.metrics.Handler())
	}
	return mux
}

func (h *handler) route(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	var next http.Handler = fn
	if h.opts.metrics != nil {
		next = h.opts.metrics.Instrument(name, next)
	}
	mux.Handle(pattern, next)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type voicesResponse struct {
	Prebuilt []tts.PrebuiltVoice `json:"prebuilt"`
	Local    []tts.LocalVoice    `json:"local"`
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	resp := voicesResponse{Prebuilt: tts.PrebuiltVoices(), Local: []tts.LocalVoice{}}
	if h.voices != nil {
		if local := h.voices.ListVoices(); local != nil {
			resp.Local = local
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// speechRequest is the body of the speech endpoints and stream messages.
type speechRequest struct {
	Text    string `json:"text"`
	Voice   string `json:"voice"`
	Style   string `json:"style"`
	Merge   bool   `json:"merge"`
	Session string `json:"session"`
}

func (r speechRequest) speech() studio.Speech {
	return studio.Speech{Text: r.Text, Voice: r.Voice, Style: r.Style, Merge: r.Merge}
}

// decode reads a speechRequest and enforces the size limit. It writes the
// error response and returns false on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request) (speechRequest, bool) {
	var req speechRequest
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return req, false
	}
	if !h.checkSize(w, req.Text) {
		return req, false
	}
	return req, true
}

func (h *handler) checkSize(w http.ResponseWriter, text string) bool {
	if h.opts.maxTextBytes > 0 && len(text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return false
	}
	return true
}

type chunkResponse struct {
	Count  int      `json:"count"`
	Chunks []string `json:"chunks"`
}

func (h *handler) handleChunk(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	chunks := h.speaker.Chunks(req.Text)
	writeJSON(w, http.StatusOK, chunkResponse{Count: len(chunks), Chunks: chunks})
}

// acquire takes a worker slot, honoring cancellation while waiting.
func (h *handler) acquire(ctx context.Context) (release func(), ok bool) {
	if h.sem == nil {
		return func() {}, true
	}
	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// run executes a speech request under the worker limit and request timeout.
func (h *handler) run(w http.ResponseWriter, r *http.Request, req speechRequest) (*studio.Result, bool) {
	release, ok := h.acquire(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	session := req.Session
	if session == "" {
		session = uuid.NewString()
	}

	start := time.Now()
	res, err := h.speaker.DoSession(ctx, session, req.speech(), nil)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		status, msg := errorStatus(err)
		h.log.WarnContext(r.Context(), "synthesis failed",
			slog.String("voice", req.Voice),
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		writeError(w, status, msg)
		return nil, false
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int("parts", len(res.Parts)),
		slog.Int64("duration_ms", durationMS),
	)
	return res, true
}

// handleTTS synthesizes every chunk, merges them and responds with the WAV.
// The stored outputs are released once written.
func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.Merge = true

	res, ok := h.run(w, r, req)
	if !ok {
		return
	}

	ids := outputIDs(res)
	defer h.speaker.Media().ReleaseAll(ids...)

	if res.Merged == nil {
		writeError(w, http.StatusInternalServerError, "no merged audio was produced")
		return
	}
	item, err := h.speaker.Media().Get(res.Merged.MediaID)
	if err != nil {
		writeError(w, http.StatusGone, "merged audio is no longer available")
		return
	}

	failed := 0
	for _, p := range res.Parts {
		if p.Output == nil {
			failed++
		}
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Filename))
	w.Header().Set("X-Chunks-Total", strconv.Itoa(len(res.Parts)))
	w.Header().Set("X-Chunks-Failed", strconv.Itoa(failed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(item.Data)
}

// handleTTSChunks responds with the per-chunk outcome; audio is fetched from
// /media/{id}.
func (h *handler) handleTTSChunks(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, ok := h.run(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func outputIDs(res *studio.Result) []string {
	var ids []string
	for _, p := range res.Parts {
		if p.Output != nil {
			ids = append(ids, p.Output.MediaID)
		}
	}
	if res.Merged != nil {
		ids = append(ids, res.Merged.MediaID)
	}
	return ids
}

func (h *handler) handleMediaGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.speaker.Media().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	w.Header().Set("Content-Type", item.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(item.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(item.Data)
}

func (h *handler) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
	if !h.speaker.Media().Release(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errorStatus maps a request failure to an HTTP status and message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "synthesis timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	}

	var pe *provider.Error
	if !errors.As(err, &pe) {
		return http.StatusBadRequest, err.Error()
	}

	switch pe.Kind {
	case provider.KindAuth:
		return http.StatusUnauthorized, pe.Message
	case provider.KindPermission:
		return http.StatusForbidden, pe.Message
	case provider.KindRateLimit:
		return http.StatusTooManyRequests, pe.Message
	case provider.KindSafety, provider.KindEmptyInput:
		return http.StatusUnprocessableEntity, pe.Message
	case provider.KindClientIO:
		return http.StatusBadRequest, pe.Message
	default:
		return http.StatusBadGateway, pe.Message
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: net/http.Server wrapper
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// New returns a Server listening on addr.
func New(addr string, speaker Speaker, voices VoiceLister, opts ...Option) *Server {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Server{
		addr:            addr,
		handler:         NewHandler(speaker, voices, opts...),
		shutdownTimeout: 30 * time.Second,
		log:             o.logger,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.InfoContext(ctx, "server listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks GET /health on addr.
func ProbeHTTP(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
