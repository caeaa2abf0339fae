package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/config"
	"github.com/example/go-genstudio/internal/imaging"
	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
)

// imageFlags are shared by every image subcommand.
type imageFlags struct {
	count  int
	aspect string
	json   bool
}

func (f *imageFlags) register(cmd *cobra.Command, withCount bool) {
	if withCount {
		cmd.Flags().IntVar(&f.count, "count", 1, fmt.Sprintf("Number of images (1-%d)", studio.MaxImages))
		cmd.Flags().StringVar(&f.aspect, "aspect", "auto", "Aspect ratio: auto|1:1|16:9|9:16|4:3|3:4")
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the result as JSON")
}

func (f *imageFlags) ratio() (provider.AspectRatio, error) {
	return provider.ParseAspectRatio(f.aspect)
}

// runRequest builds the app and runs one request with output to the
// configured directory.
func runRequest(cmd *cobra.Command, cfg config.Config, req studio.Request, asJSON bool) error {
	a, err := newApp(cmd.Context(), cfg, appOptions{needProvider: true, withHistory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := defaultOutput(cfg.Paths.OutputDir)
	out.stdout, out.progress, out.json = cmd.OutOrStdout(), cmd.ErrOrStderr(), asJSON
	_, err = a.run(cmd.Context(), req, out)
	return err
}

func newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Create, edit, restore and composite images",
	}

	cmd.AddCommand(newImageCreateCmd())
	cmd.AddCommand(newImageAnalyzeCmd())
	cmd.AddCommand(newImageEditCmd())
	cmd.AddCommand(newImageRestoreCmd())
	cmd.AddCommand(newImageUpscaleCmd())
	cmd.AddCommand(newImageCompositeCmd())

	return cmd
}

func newImageCreateCmd() *cobra.Command {
	var (
		f                      imageFlags
		idea, prompt           string
		branch, mode, language string
		tech                   provider.TechOptions
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Expand an idea into a prompt and render it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ratio, err := f.ratio()
			if err != nil {
				return err
			}

			req := studio.IdeaImage{Direct: prompt, Count: f.count, AspectRatio: ratio}
			if prompt == "" {
				b, err := provider.ParseBranch(branch)
				if err != nil {
					return err
				}
				m, err := parseMode(mode)
				if err != nil {
					return err
				}
				req.Idea = provider.IdeaRequest{Idea: idea, Branch: b, Options: tech, Mode: m, Language: language}
			}

			return runRequest(cmd, cfg, req, f.json)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&idea, "idea", "", "Short idea to expand into a prompt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Use this prompt directly, skipping expansion")
	cmd.Flags().StringVar(&branch, "branch", string(provider.BranchModernHuman), "Subject category for focused mode")
	cmd.Flags().StringVar(&mode, "mode", string(provider.ModeFreestyle), "Expansion mode: freestyle|focused")
	cmd.Flags().StringVar(&language, "language", "", "Translation language (default Vietnamese)")
	cmd.Flags().StringVar(&tech.Style, "style", "", "Style preference")
	cmd.Flags().StringVar(&tech.Layout, "layout", "", "Layout preference")
	cmd.Flags().StringVar(&tech.Angle, "angle", "", "Camera angle preference")
	cmd.Flags().StringVar(&tech.Quality, "quality", "", "Quality preference")

	return cmd
}

func parseMode(s string) (provider.Mode, error) {
	switch m := provider.Mode(s); m {
	case "", provider.ModeFreestyle:
		return provider.ModeFreestyle, nil
	case provider.ModeFocused:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func newImageAnalyzeCmd() *cobra.Command {
	var (
		f              imageFlags
		mode, language string
		tech           provider.TechOptions
	)

	cmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Describe an image as a prompt and render new versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ratio, err := f.ratio()
			if err != nil {
				return err
			}
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			img, err := imaging.Load(args[0])
			if err != nil {
				return err
			}

			return runRequest(cmd, cfg, studio.AnalyzedImage{
				Analyze:     provider.AnalyzeRequest{Image: img, Mode: m, Options: tech, Language: language},
				Count:       f.count,
				AspectRatio: ratio,
			}, f.json)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&mode, "mode", string(provider.ModeFreestyle), "Analysis mode: freestyle|focused")
	cmd.Flags().StringVar(&language, "language", "", "Translation language")
	cmd.Flags().StringVar(&tech.Style, "style", "", "Style preference")
	cmd.Flags().StringVar(&tech.Layout, "layout", "", "Layout preference")
	cmd.Flags().StringVar(&tech.Angle, "angle", "", "Camera angle preference")
	cmd.Flags().StringVar(&tech.Quality, "quality", "", "Quality preference")

	return cmd
}

func newImageEditCmd() *cobra.Command {
	var f imageFlags
	var instruction string

	cmd := &cobra.Command{
		Use:   "edit IMAGE",
		Short: "Edit an image following an instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ratio, err := f.ratio()
			if err != nil {
				return err
			}
			img, err := imaging.Load(args[0])
			if err != nil {
				return err
			}

			return runRequest(cmd, cfg, studio.ImageEdit{
				Subject:     img,
				Instruction: instruction,
				Count:       f.count,
				AspectRatio: ratio,
			}, f.json)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&instruction, "instruction", "", "What to change")

	return cmd
}

func newImageRestoreCmd() *cobra.Command {
	var f imageFlags
	var r provider.RestoreRequest

	cmd := &cobra.Command{
		Use:   "restore PHOTO",
		Short: "Restore an old photograph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			img, err := imaging.Load(args[0])
			if err != nil {
				return err
			}
			r.Image = img

			return runRequest(cmd, cfg, studio.PhotoRestore{RestoreRequest: r}, f.json)
		},
	}

	f.register(cmd, false)
	cmd.Flags().BoolVar(&r.Multiple, "multiple", false, "The photo shows several people")
	cmd.Flags().StringVar(&r.Gender, "gender", "", "Gender hint for single-person photos")
	cmd.Flags().StringVar(&r.Age, "age", "", "Age hint for single-person photos")
	cmd.Flags().StringVar(&r.Description, "description", "", "Extra restoration notes")

	return cmd
}

func newImageUpscaleCmd() *cobra.Command {
	var f imageFlags

	cmd := &cobra.Command{
		Use:   "upscale IMAGE",
		Short: "Enhance an image to a higher resolution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			img, err := imaging.Load(args[0])
			if err != nil {
				return err
			}

			return runRequest(cmd, cfg, studio.Upscale{Image: img}, f.json)
		},
	}

	f.register(cmd, false)

	return cmd
}

func newImageCompositeCmd() *cobra.Command {
	var (
		f                       imageFlags
		background, description string
	)

	cmd := &cobra.Command{
		Use:   "composite CHARACTER...",
		Short: "Place characters into one scene",
		Long:  "Characters are numbered in argument order; refer to them as character 1, 2, ... in --description.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ratio, err := f.ratio()
			if err != nil {
				return err
			}

			chars := make([]provider.Character, 0, len(args))
			for i, p := range args {
				img, err := imaging.Load(p)
				if err != nil {
					return err
				}
				chars = append(chars, provider.Character{Number: i + 1, Image: img})
			}

			req := studio.Composite{
				Characters:  chars,
				Description: description,
				Count:       f.count,
				AspectRatio: ratio,
			}
			if background != "" {
				bg, err := imaging.Load(background)
				if err != nil {
					return err
				}
				req.Background = &bg
			}

			return runRequest(cmd, cfg, req, f.json)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&background, "background", "", "Optional background image")
	cmd.Flags().StringVar(&description, "description", "", "Scene and action description")

	return cmd
}
