package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/imaging"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
	"github.com/example/go-genstudio/internal/video"
)

func newVideoCmd() *cobra.Command {
	var (
		req    provider.VideoRequest
		image  string
		aspect string
		count  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "video",
		Short: "Generate videos from a prompt and optional start image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			req.AspectRatio = provider.AspectRatio(aspect)
			if image != "" {
				img, err := imaging.Load(image)
				if err != nil {
					return err
				}
				req.Image = &img
			}

			return runRequest(cmd, cfg, studio.Video{VideoRequest: req, Count: count}, asJSON)
		},
	}

	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "Video prompt")
	cmd.Flags().StringVar(&image, "image", "", "Optional start image")
	cmd.Flags().StringVar(&req.Model, "model", provider.VideoModelFast, "Video model")
	cmd.Flags().StringVar(&req.Resolution, "resolution", provider.Resolution720p, "Resolution: 720p|1080p")
	cmd.Flags().StringVar(&aspect, "aspect", string(provider.AspectWide), "Aspect ratio: 16:9|9:16")
	cmd.Flags().IntVar(&count, "count", 1, fmt.Sprintf("Number of videos (1-%d)", studio.MaxImages))
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func newEditVideoCmd() *cobra.Command {
	var req video.EditRequest
	var effect string

	cmd := &cobra.Command{
		Use:   "edit-video SOURCE",
		Short: "Re-encode a video with an effect and center crop",
		Long:  "Effects: " + effectNames() + ". Crop ratios look like 1:1, 16:9 or 9:16; empty keeps the frame.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			e, err := video.ParseEffect(effect)
			if err != nil {
				return err
			}
			req.Effect = e
			req.Source = args[0]
			if req.Output == "" {
				req.Output = editedName(cfg.Paths.OutputDir, req.Source)
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			out := defaultOutput(cfg.Paths.OutputDir)
			out.stdout, out.progress = cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, err = a.run(cmd.Context(), studio.VideoEdit{EditRequest: req}, out)
			return err
		},
	}

	cmd.Flags().StringVar(&effect, "effect", string(video.EffectNone), "Visual effect")
	cmd.Flags().StringVar(&req.CropRatio, "crop", "", "Crop ratio (W:H)")
	cmd.Flags().StringVar(&req.Output, "out", "", "Output path (default <output-dir>/<name>-edited.mp4)")

	return cmd
}

func effectNames() string {
	names := make([]string, 0, len(video.Effects()))
	for _, e := range video.Effects() {
		names = append(names, string(e))
	}
	return strings.Join(names, ", ")
}

// editedName is <dir>/<source base>-edited.mp4.
func editedName(dir, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+"-edited.mp4")
}
