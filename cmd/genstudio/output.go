package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/example/go-genstudio/internal/media"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/provider/pocket"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/video"
)

// outputOptions says where a command's results go.
type outputOptions struct {
	dir      string
	parts    bool
	json     bool
	stdout   io.Writer
	progress io.Writer
}

func defaultOutput(dir string) outputOptions {
	return outputOptions{dir: dir, stdout: os.Stdout, progress: os.Stderr}
}

func printProgress(w io.Writer) provider.Progress {
	if w == nil {
		return nil
	}
	return func(msg string) {
		_, _ = fmt.Fprintln(w, msg)
	}
}

// writeResult saves every stored output under out.dir and prints text
// results. Part outputs are written when requested or when nothing was
// merged.
func writeResult(store *media.Store, res *studio.Result, out outputOptions) error {
	if out.stdout == nil {
		out.stdout = io.Discard
	}
	if out.progress == nil {
		out.progress = io.Discard
	}

	if out.json {
		enc := json.NewEncoder(out.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printText(out.stdout, res)
	}

	files := append([]studio.Output(nil), res.Outputs...)
	if res.Merged != nil {
		files = append(files, *res.Merged)
	}
	if out.parts || res.Merged == nil {
		for _, p := range res.Parts {
			if p.Output != nil {
				files = append(files, *p.Output)
			}
		}
	}

	for _, o := range files {
		path, err := saveOutput(store, o, out.dir)
		if err != nil {
			return err
		}
		if !out.json {
			_, _ = fmt.Fprintln(out.stdout, path)
		}
	}

	for _, msg := range res.Errors {
		_, _ = fmt.Fprintf(out.progress, "warning: %s\n", msg)
	}
	for _, p := range res.Parts {
		if p.Error != "" {
			_, _ = fmt.Fprintf(out.progress, "warning: %s\n", p.Error)
		}
	}
	return nil
}

// saveOutput writes a stored output to dir. Outputs already written to disk
// carry no media id and are returned as is.
func saveOutput(store *media.Store, o studio.Output, dir string) (string, error) {
	if o.MediaID == "" {
		return o.Filename, nil
	}

	item, err := store.Get(o.MediaID)
	if err != nil {
		return "", fmt.Errorf("output %s: %w", o.Filename, err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, o.Filename)
	if err := os.WriteFile(path, item.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func printText(w io.Writer, res *studio.Result) {
	if res.Prompts != nil {
		_, _ = fmt.Fprintf(w, "Prompt: %s\n", res.Prompts.English)
		if res.Prompts.Translation != "" {
			_, _ = fmt.Fprintf(w, "Translation: %s\n", res.Prompts.Translation)
		}
	}

	if sb := res.Storyboard; sb != nil {
		_, _ = fmt.Fprintf(w, "# %s\n", sb.Title)
		if sb.Logline != "" {
			_, _ = fmt.Fprintf(w, "%s\n", sb.Logline)
		}
		for _, sc := range sb.Scenes {
			_, _ = fmt.Fprintf(w, "\nScene %d: %s\n  Narration: %s\n  Prompt: %s\n", sc.Number, sc.Description, sc.Narration, sc.Prompt)
		}
	}

	if sc := res.Script; sc != nil {
		section(w, "Titles", sc.Titles)
		if sc.Hook != "" {
			_, _ = fmt.Fprintf(w, "Hook:\n  %s\n", sc.Hook)
		}
		section(w, "Descriptions", sc.Descriptions)
		section(w, "Thumbnail captions", sc.ThumbnailCaptions)
		section(w, "Story", sc.StoryParts)
	}

	if res.Text != "" {
		_, _ = fmt.Fprintln(w, res.Text)
	}

	if v := res.Voice; v != nil {
		_, _ = fmt.Fprintf(w, "Voice: %s (%s)\n", v.ID, v.Path)
	}
}

func section(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "%s:\n", title)
	for i, l := range lines {
		_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, l)
	}
}

// readText returns input, the contents of file, or stdin, in that order,
// normalized for speech.
func readText(input, file string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(input) == "" {
		var (
			b   []byte
			err error
		)
		if file != "" {
			if b, err = os.ReadFile(file); err != nil {
				return "", fmt.Errorf("read %s: %w", file, err)
			}
		} else if b, err = io.ReadAll(stdin); err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		input = string(b)
	}

	out, err := text.Normalize(input)
	if errors.Is(err, text.ErrEmptyText) {
		return "", errors.New("either provide --text, --file or pipe text on stdin")
	}
	return out, err
}

// mapCLIError turns low-level errors into actionable messages.
func mapCLIError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrMissingCredential):
		return fmt.Errorf("no API key configured; set GEMINI_API_KEY, --provider-api-key or run `genstudio key set`: %w", err)
	case errors.Is(err, pocket.ErrExecutableNotFound), errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("required executable not found; set --tts-cli-path or --video-ffmpeg-path: %w", err)
	case errors.Is(err, video.ErrSourceUnreadable):
		return fmt.Errorf("cannot read the source video; check the file and --video-ffprobe-path: %w", err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("external tool returned non-zero exit; check stderr details above: %w", err)
	}

	return err
}
