// Package video re-encodes videos with ffmpeg and drives long-running video
// generation jobs.
package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrSourceUnreadable is returned when the source video cannot be probed.
var ErrSourceUnreadable = errors.New("could not load the video for editing")

// Effect is a per-frame visual filter.
type Effect string

const (
	EffectNone       Effect = "none"
	EffectGrayscale  Effect = "grayscale"
	EffectSepia      Effect = "sepia"
	EffectInvert     Effect = "invert"
	EffectBrightness Effect = "brightness"
)

// Effects lists the supported effects.
func Effects() []Effect {
	return []Effect{EffectNone, EffectGrayscale, EffectSepia, EffectInvert, EffectBrightness}
}

// ParseEffect accepts an effect name; empty means EffectNone.
func ParseEffect(s string) (Effect, error) {
	if s == "" {
		return EffectNone, nil
	}
	for _, e := range Effects() {
		if string(e) == strings.ToLower(strings.TrimSpace(s)) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown effect %q", s)
}

// filter returns the ffmpeg filter for e, or "" for EffectNone.
func (e Effect) filter() string {
	switch e {
	case EffectGrayscale:
		return "hue=s=0"
	case EffectSepia:
		return "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131"
	case EffectInvert:
		return "negate"
	case EffectBrightness:
		return "colorchannelmixer=rr=1.3:gg=1.3:bb=1.3"
	default:
		return ""
	}
}

// Rect is a crop window in source pixels.
type Rect struct {
	X, Y, Width, Height int
}

// ParseRatio parses "W:H". Empty and "original" return 0, meaning no crop.
func ParseRatio(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "original" {
		return 0, nil
	}

	w, h, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid aspect ratio %q: want W:H", s)
	}
	fw, err1 := strconv.ParseFloat(w, 64)
	fh, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || fw <= 0 || fh <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q: want W:H", s)
	}
	return fw / fh, nil
}

// CropRect centers the largest window of the given ratio inside the source.
// A target wider than the source keeps the full height and trims the sides;
// otherwise the full width is kept and top and bottom are trimmed. The
// window never exceeds the source, and its size is rounded down to even
// numbers for the encoder.
func CropRect(srcW, srcH int, ratio float64) Rect {
	w, h := srcW, srcH
	if ratio > 0 && srcW > 0 && srcH > 0 {
		if float64(srcW)/float64(srcH) > ratio {
			w = int(float64(srcH) * ratio)
		} else {
			h = int(float64(srcW) / ratio)
		}
	}
	w -= w % 2
	h -= h % 2
	return Rect{X: (srcW - w) / 2, Y: (srcH - h) / 2, Width: w, Height: h}
}

// Probe describes the first video stream of a file.
type Probe struct {
	Width    int
	Height   int
	Duration time.Duration
}

// EditRequest is one re-encode.
type EditRequest struct {
	Source    string
	Output    string
	Effect    Effect
	CropRatio string
}

// Reencoder applies effects and crops with ffmpeg.
type Reencoder struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *slog.Logger
}

// Test seams.
var (
	runProbe = func(ctx context.Context, exe string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, exe, args...).Output()
	}
	runEncode = func(ctx context.Context, exe string, args []string, onLine func(string)) error {
		cmd := exec.CommandContext(ctx, exe, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return err
		}

		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			onLine(sc.Text())
		}
		_, _ = io.Copy(io.Discard, stdout)

		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				lines := strings.Split(msg, "\n")
				return fmt.Errorf("%w: %s", err, lines[len(lines)-1])
			}
			return err
		}
		return nil
	}
)

func (r *Reencoder) ffmpeg() string {
	if r.FFmpegPath != "" {
		return r.FFmpegPath
	}
	return "ffmpeg"
}

func (r *Reencoder) ffprobe() string {
	if r.FFprobePath != "" {
		return r.FFprobePath
	}
	return "ffprobe"
}

func (r *Reencoder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the dimensions and duration of path.
func (r *Reencoder) Probe(ctx context.Context, path string) (Probe, error) {
	out, err := runProbe(ctx, r.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		path)
	if err != nil {
		return Probe{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return Probe{}, fmt.Errorf("%w: decode ffprobe output: %v", ErrSourceUnreadable, err)
	}
	if len(po.Streams) == 0 || po.Streams[0].Width <= 0 || po.Streams[0].Height <= 0 {
		return Probe{}, fmt.Errorf("%w: no video stream", ErrSourceUnreadable)
	}

	p := Probe{Width: po.Streams[0].Width, Height: po.Streams[0].Height}
	if secs, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil && secs > 0 {
		p.Duration = time.Duration(secs * float64(time.Second))
	}
	return p, nil
}

// Reencode writes req.Source with the effect and crop applied to
// req.Output. onProgress, if set, receives the percentage of source time
// processed. The output only appears once encoding succeeds.
func (r *Reencoder) Reencode(ctx context.Context, req EditRequest, onProgress func(percent float64)) error {
	if req.Effect == "" {
		req.Effect = EffectNone
	}
	if _, err := ParseEffect(string(req.Effect)); err != nil {
		return err
	}
	ratio, err := ParseRatio(req.CropRatio)
	if err != nil {
		return err
	}
	if req.Output == "" {
		return errors.New("output path is required")
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	src, err := r.Probe(ctx, req.Source)
	if err != nil {
		return err
	}

	crop := CropRect(src.Width, src.Height, ratio)
	filters := []string{fmt.Sprintf("crop=%d:%d:%d:%d", crop.Width, crop.Height, crop.X, crop.Y)}
	if f := req.Effect.filter(); f != "" {
		filters = append(filters, f)
	}

	dir := filepath.Dir(req.Output)
	ext := filepath.Ext(req.Output)
	tmpFile, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(req.Output), ext)+".*"+ext)
	if err != nil {
		return fmt.Errorf("create temporary output: %w", err)
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()

	args := []string{
		"-y", "-nostats", "-loglevel", "error",
		"-i", req.Source,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-progress", "pipe:1",
		tmp,
	}

	log := r.logger()
	log.InfoContext(ctx, "re-encoding video",
		slog.String("source", req.Source),
		slog.String("effect", string(req.Effect)),
		slog.String("crop", fmt.Sprintf("%dx%d+%d+%d", crop.Width, crop.Height, crop.X, crop.Y)),
	)

	start := time.Now()
	onProgress(0)
	err = runEncode(ctx, r.ffmpeg(), args, func(line string) {
		if pct, ok := progressPercent(line, src.Duration); ok {
			onProgress(pct)
		}
	})
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ffmpeg: %w", err)
	}

	if err := os.Rename(tmp, req.Output); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move output into place: %w", err)
	}

	onProgress(100)
	log.InfoContext(ctx, "video re-encoded",
		slog.String("output", req.Output),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// progressPercent parses an ffmpeg -progress line. out_time_us and the
// misnamed out_time_ms both carry microseconds.
func progressPercent(line string, total time.Duration) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || total <= 0 || (key != "out_time_us" && key != "out_time_ms") {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	pct := float64(time.Duration(us)*time.Microsecond) / float64(total) * 100
	return min(pct, 100), true
}
