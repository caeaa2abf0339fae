package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/tts"
)

var timeNow = time.Now

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream message types. A "chunk" message for a successful chunk is
// followed by one binary message holding its WAV.
const (
	msgStart = "start"
	msgChunk = "chunk"
	msgDone  = "done"
	msgError = "error"
)

type streamMessage struct {
	Type      string `json:"type"`
	Request   string `json:"request,omitempty"`
	Session   string `json:"session,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
	Index     int    `json:"index"`
	Text      string `json:"text,omitempty"`
	MediaID   string `json:"media_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Succeeded int    `json:"succeeded,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Merged    string `json:"merged_media_id,omitempty"`
}

// streamConn serializes writes of concurrent request runs on one socket.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// streamOutputs tracks the media of the latest request on a socket. Starting
// a request or closing the socket releases what the previous one stored.
type streamOutputs struct {
	store   *media.Store
	mu      sync.Mutex
	current *media.Group
}

func (o *streamOutputs) begin() *media.Group {
	g := media.NewGroup(o.store)

	o.mu.Lock()
	prev := o.current
	o.current = g
	o.mu.Unlock()

	if prev != nil {
		prev.Clear()
	}
	return g
}

func (o *streamOutputs) close() {
	o.mu.Lock()
	g := o.current
	o.current = nil
	o.mu.Unlock()

	if g != nil {
		g.Clear()
	}
}

func (c *streamConn) send(msg streamMessage, wav []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return err
	}
	if wav != nil {
		return c.conn.WriteMessage(websocket.BinaryMessage, wav)
	}
	return nil
}

// handleStream upgrades to a websocket. Each text message is a speech
// request; chunks are sent back in order as soon as every earlier chunk has
// settled. A new request on the same session cancels the running one.
func (h *handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if m := h.opts.metrics; m != nil {
		m.StreamOpened()
		defer m.StreamClosed()
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sc := &streamConn{conn: conn}
	outs := &streamOutputs{store: h.speaker.Media()}
	defer outs.close()

	var wg sync.WaitGroup
	defer wg.Wait()

	h.log.InfoContext(ctx, "stream opened", slog.String("session", session))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WarnContext(ctx, "stream read failed", slog.String("session", session), slog.String("error", err.Error()))
			}
			cancel()
			h.supersede.Cancel(session)
			return
		}

		var req speechRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = sc.send(streamMessage{Type: msgError, Error: "invalid JSON: " + err.Error()}, nil)
			continue
		}
		if err := req.speech().Validate(); err != nil {
			_ = sc.send(streamMessage{Type: msgError, Error: err.Error()}, nil)
			continue
		}
		if len(req.Text) > h.opts.maxTextBytes && h.opts.maxTextBytes > 0 {
			_ = sc.send(streamMessage{Type: msgError, Error: "text exceeds maximum size"}, nil)
			continue
		}

		runCtx, done := h.supersede.Begin(ctx, session)
		group := outs.begin()
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.streamRequest(runCtx, done, sc, group, session, req)
		}()
	}
}

func (h *handler) streamRequest(runCtx context.Context, done func() bool, sc *streamConn, group *media.Group, session string, req speechRequest) {
	ctx, cancel := context.WithTimeout(runCtx, h.opts.requestTimeout)
	defer cancel()

	defer func() {
		if !done() || ctx.Err() != nil {
			group.Clear()
		}
	}()

	release, ok := h.acquire(ctx)
	if !ok {
		h.finishCancelled(ctx, sc, session, "")
		return
	}
	defer release()

	id := uuid.NewString()
	chunks := h.speaker.Chunks(req.Text)
	_ = sc.send(streamMessage{Type: msgStart, Request: id, Session: session, Chunks: len(chunks)}, nil)

	seq := tts.NewSequencer(func(cr tts.ChunkResult) {
		if ctx.Err() != nil {
			return
		}
		msg := streamMessage{Type: msgChunk, Request: id, Index: cr.Index, Text: cr.Text}
		if !cr.OK() {
			msg.Error = provider.Classify(cr.Err, true).Message
			_ = sc.send(msg, nil)
			return
		}
		msg.MediaID = group.Add("audio/wav", studio.PartFilename(cr.Index), cr.WAV)
		_ = sc.send(msg, cr.WAV)
	})

	results, err := h.speaker.SpeakChunks(ctx, req.speech(), seq.Add)
	if err != nil {
		_, text := errorStatus(provider.Classify(err, true))
		_ = sc.send(streamMessage{Type: msgError, Request: id, Error: text}, nil)
		return
	}
	if ctx.Err() != nil {
		h.finishCancelled(ctx, sc, session, id)
		return
	}

	final := streamMessage{Type: msgDone, Request: id, Succeeded: results.Succeeded(), Failed: len(results.Failed())}
	if req.Merge && results.Succeeded() > 0 {
		merged, err := results.Merge()
		if err == nil {
			if m := h.opts.metrics; m != nil {
				m.ObserveMerge(results.Succeeded())
			}
			final.Merged = group.Add("audio/wav", studio.MergedFilename(timeNow()), merged)
		}
	}
	_ = sc.send(final, nil)
}

// finishCancelled ends a request whose context is done. A superseded or
// closed request ends silently; a timed out one tells the client.
func (h *handler) finishCancelled(ctx context.Context, sc *streamConn, session, id string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		h.log.WarnContext(ctx, "stream request timed out", slog.String("session", session), slog.String("request", id))
		_, text := errorStatus(ctx.Err())
		_ = sc.send(streamMessage{Type: msgError, Request: id, Error: text}, nil)
		return
	}
	h.log.InfoContext(ctx, "stream request superseded", slog.String("session", session), slog.String("request", id))
}
