package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/audio"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/text"
	"github.com/example/go-genstudio/internal/tts"
)

func newChunkCmd() *cobra.Command {
	var input, file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Show how text is split into synthesis requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			t, err := readText(input, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			chunks := text.ChunkWith(t, cfg.TTS.ChunkLimit, cfg.TTS.ChunkOptions())
			return printChunks(cmd.OutOrStdout(), chunks, asJSON)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to split (if empty, read --file or stdin)")
	cmd.Flags().StringVar(&file, "file", "", "Read text from a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chunks as a JSON array")

	return cmd
}

func printChunks(w io.Writer, chunks []string, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(chunks)
	}
	for i, c := range chunks {
		if _, err := fmt.Fprintf(w, "--- part %d (%d chars) ---\n%s\n", i+1, len([]rune(c)), c); err != nil {
			return err
		}
	}
	return nil
}

func newSynthCmd() *cobra.Command {
	var (
		input, file, out string
		voice, style     string
		noMerge, parts   bool
		post             audio.PostOptions
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV, chunked and in parallel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			t, err := readText(input, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if voice == "" {
				voice = cfg.TTS.Voice
			}
			if style == "" {
				style = cfg.TTS.Style
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{needProvider: needsProvider(cfg), withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.studio.Do(cmd.Context(), studio.Speech{
				Text:  t,
				Voice: voice,
				Style: style,
				Merge: !noMerge,
			}, printProgress(cmd.ErrOrStderr()))
			if err != nil {
				return mapCLIError(err)
			}

			return writeSpeech(a, res, synthOutput{
				path:   out,
				dir:    cfg.Paths.OutputDir,
				parts:  parts || noMerge,
				post:   post,
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to synthesize (if empty, read --file or stdin)")
	cmd.Flags().StringVar(&file, "file", "", "Read text from a file")
	cmd.Flags().StringVar(&out, "out", "", "Merged WAV path ('-' for stdout; default <output-dir>/genstudio-tts-merged-<ms>.wav)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice override (prebuilt name or local voice id)")
	cmd.Flags().StringVar(&style, "style", "", "Reading style hint")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "Only write the individual parts")
	cmd.Flags().BoolVar(&parts, "parts", false, "Also write the individual parts")
	cmd.Flags().BoolVar(&post.Normalize, "normalize", false, "Peak-normalize the merged audio")
	cmd.Flags().BoolVar(&post.DCBlock, "dc-block", false, "Apply DC-block high-pass filter to the merged audio")
	cmd.Flags().Float64Var(&post.FadeInMS, "fade-in-ms", 0, "Linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&post.FadeOutMS, "fade-out-ms", 0, "Linear fade-out duration in milliseconds")

	return cmd
}

type synthOutput struct {
	path   string
	dir    string
	parts  bool
	post   audio.PostOptions
	stdout io.Writer
	stderr io.Writer
}

// writeSpeech post-processes and writes the merged file, then the parts
// when asked.
func writeSpeech(a *app, res *studio.Result, out synthOutput) error {
	store := a.studio.Media()

	for _, p := range res.Parts {
		if p.Error != "" {
			_, _ = fmt.Fprintf(out.stderr, "warning: %s\n", p.Error)
		}
	}

	if res.Merged != nil {
		item, err := store.Get(res.Merged.MediaID)
		if err != nil {
			return err
		}

		data, err := audio.PostProcess(item.Data, out.post)
		if err != nil {
			return fmt.Errorf("post-process merged audio: %w", err)
		}

		if err := writeSynthOutput(out, res.Merged.Filename, data); err != nil {
			return err
		}
	}

	if !out.parts {
		return nil
	}
	for _, p := range res.Parts {
		if p.Output == nil {
			continue
		}
		path, err := saveOutput(store, *p.Output, out.dir)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out.stderr, path)
	}
	return nil
}

func writeSynthOutput(out synthOutput, filename string, data []byte) error {
	if out.path == "-" {
		_, err := out.stdout.Write(data)
		return err
	}

	path := out.path
	if path == "" {
		path = filepath.Join(out.dir, filename)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	_, err := fmt.Fprintln(out.stderr, path)
	return err
}

func newDialogueCmd() *cobra.Command {
	var script, file string
	var speakers []string

	cmd := &cobra.Command{
		Use:   "dialogue",
		Short: "Synthesize a multi-speaker script as one clip",
		Example: `  genstudio dialogue --speaker Joe=Kore --speaker Jane=Puck --text "Joe: Hi.
Jane: Hello!"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			body, err := readText(script, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			sp, err := parseSpeakers(speakers)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{needProvider: true, withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := defaultOutput(cfg.Paths.OutputDir)
			out.stdout, out.progress = cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, err = a.run(cmd.Context(), studio.Dialogue{
				DialogueRequest: provider.DialogueRequest{Script: body, Speakers: sp},
			}, out)
			return err
		},
	}

	cmd.Flags().StringVar(&script, "text", "", "Dialogue script (if empty, read --file or stdin)")
	cmd.Flags().StringVar(&file, "file", "", "Read the script from a file")
	cmd.Flags().StringArrayVar(&speakers, "speaker", nil, "Speaker in name=voice form (repeatable, at least 2)")

	return cmd
}

// parseSpeakers reads name=voice pairs. A missing voice uses the default.
func parseSpeakers(raw []string) ([]provider.Speaker, error) {
	out := make([]provider.Speaker, 0, len(raw))
	for _, r := range raw {
		name, voice, _ := strings.Cut(r, "=")
		name, voice = strings.TrimSpace(name), strings.TrimSpace(voice)
		if name == "" {
			return nil, fmt.Errorf("invalid --speaker %q: expected name=voice", r)
		}
		if voice == "" {
			voice = tts.DefaultVoice
		} else if _, err := tts.LookupPrebuilt(voice); err != nil {
			return nil, err
		}
		out = append(out, provider.Speaker{Name: name, Voice: voice})
	}
	return out, nil
}

// Test seam.
var nowFunc = time.Now

func newMergeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "merge FILE.wav...",
		Short: "Concatenate speech WAV files in the given order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			wavs := make([][]byte, 0, len(args))
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("read %s: %w", p, err)
				}
				wavs = append(wavs, data)
			}

			merged, err := audio.MergeWAVs(wavs...)
			if err != nil {
				return fmt.Errorf("%s: %w", provider.MessageEmptyInput, err)
			}

			return writeSynthOutput(synthOutput{
				path:   out,
				dir:    cfg.Paths.OutputDir,
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
			}, studio.MergedFilename(nowFunc()), merged)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output WAV path ('-' for stdout)")

	return cmd
}

func newVoicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List prebuilt and local voices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			vm, err := tts.NewVoiceManager(cfg.Paths.VoicesManifest)
			if err != nil {
				return err
			}

			return printVoices(cmd.OutOrStdout(), tts.PrebuiltVoices(), vm.ListVoices(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print voices as JSON")

	return cmd
}

func printVoices(w io.Writer, prebuilt []tts.PrebuiltVoice, local []tts.LocalVoice, asJSON bool) error {
	if asJSON {
		if local == nil {
			local = []tts.LocalVoice{}
		}
		return json.NewEncoder(w).Encode(struct {
			Prebuilt []tts.PrebuiltVoice `json:"prebuilt"`
			Local    []tts.LocalVoice    `json:"local"`
		}{prebuilt, local})
	}

	_, _ = fmt.Fprintln(w, "Prebuilt voices:")
	for _, v := range prebuilt {
		_, _ = fmt.Fprintf(w, "  %-14s %s\n", v.ID, v.Description)
	}

	if len(local) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w, "Local voices:")
	for _, v := range local {
		_, _ = fmt.Fprintf(w, "  %-14s %s\n", v.ID, v.Description)
	}
	return nil
}

func newCloneVoiceCmd() *cobra.Command {
	var id, sample, description, input string

	cmd := &cobra.Command{
		Use:   "clone-voice",
		Short: "Export a local voice from a sample recording and speak with it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := defaultOutput(cfg.Paths.OutputDir)
			out.stdout, out.progress = cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, err = a.run(cmd.Context(), studio.VoiceClone{
				ID:          id,
				SamplePath:  sample,
				Description: description,
				Text:        input,
			}, out)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Name of the new voice")
	cmd.Flags().StringVar(&sample, "sample", "", "Sample recording (WAV)")
	cmd.Flags().StringVar(&description, "description", "", "Voice description for the manifest")
	cmd.Flags().StringVar(&input, "text", "", "Text to speak with the new voice")

	return cmd
}
