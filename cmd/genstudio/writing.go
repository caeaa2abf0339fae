package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/provider"
	"github.com/example/go-genstudio/internal/studio"
)

func newStoryboardCmd() *cobra.Command {
	var (
		req        provider.StoryboardRequest
		scriptFile string
		load       string
		narrate    bool
		merge      bool
		voice      string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "storyboard",
		Short: "Plan a video from a topic or script, optionally narrating every scene",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{needProvider: true, withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := defaultOutput(cfg.Paths.OutputDir)
			out.stdout, out.progress, out.json = cmd.OutOrStdout(), cmd.ErrOrStderr(), asJSON

			var sb provider.Storyboard
			if load != "" {
				data, err := os.ReadFile(load)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &sb); err != nil {
					return fmt.Errorf("decode storyboard %s: %w", load, err)
				}
			} else {
				if scriptFile != "" {
					data, err := os.ReadFile(scriptFile)
					if err != nil {
						return err
					}
					req.Script = string(data)
				}

				res, err := a.run(cmd.Context(), studio.Storyboard{StoryboardRequest: req}, out)
				if err != nil {
					return err
				}
				sb = *res.Storyboard
			}

			if !narrate {
				return nil
			}

			if voice == "" {
				voice = cfg.TTS.Voice
			}
			out.json = false
			_, err = a.run(cmd.Context(), studio.Narration{Storyboard: sb, Voice: voice, Merge: merge}, out)
			return err
		},
	}

	cmd.Flags().StringVar(&req.Topic, "topic", "", "Video topic")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "Build the storyboard from this script instead of a topic")
	cmd.Flags().IntVar(&req.DurationSeconds, "duration", 60, "Target video length in seconds")
	cmd.Flags().StringVar(&req.Language, "language", "", "Narration language")
	cmd.Flags().StringVar(&load, "load", "", "Narrate a storyboard previously saved with --json")
	cmd.Flags().BoolVar(&narrate, "narrate", false, "Synthesize the narration of every scene")
	cmd.Flags().BoolVar(&merge, "merge", true, "Also merge the scene narration into one file")
	cmd.Flags().StringVar(&voice, "voice", "", "Narration voice")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the storyboard as JSON")

	return cmd
}

func newScriptCmd() *cobra.Command {
	var req provider.ScriptRequest
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Write a YouTube video package for a topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runRequest(cmd, cfg, studio.YouTubeScript{ScriptRequest: req}, asJSON)
		},
	}

	cmd.Flags().StringVar(&req.Topic, "topic", "", "Video topic")
	cmd.Flags().StringVar(&req.Language, "language", "", "Script language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the script as JSON")

	return cmd
}

func newStoryCmd() *cobra.Command {
	var (
		req        provider.StoryCloneRequest
		input      string
		file       string
		creativity string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "story",
		Short: "Rewrite a story with new twists and characters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			story, err := readText(input, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			c, err := parseCreativity(creativity)
			if err != nil {
				return err
			}
			req.Story, req.Creativity = story, c

			return runRequest(cmd, cfg, studio.StoryClone{StoryCloneRequest: req}, asJSON)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Original story (if empty, read --file or stdin)")
	cmd.Flags().StringVar(&file, "file", "", "Read the story from a file")
	cmd.Flags().StringVar(&creativity, "creativity", string(provider.CreativityBalanced), "faithful|balanced|creative")
	cmd.Flags().StringVar(&req.Twists, "twists", "", "Plot twists to introduce")
	cmd.Flags().StringVar(&req.Characters, "characters", "", "Character changes")
	cmd.Flags().StringVar(&req.Language, "language", "", "Output language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func parseCreativity(s string) (provider.Creativity, error) {
	switch c := provider.Creativity(s); c {
	case provider.CreativityFaithful, provider.CreativityBalanced, provider.CreativityCreative:
		return c, nil
	case "":
		return provider.CreativityBalanced, nil
	default:
		return "", fmt.Errorf("unknown creativity %q", s)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var req provider.ChannelAnalysisRequest
	var kind string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze CHANNEL_URL",
		Short: "Analyze a YouTube channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			t, err := parseAnalysisType(kind)
			if err != nil {
				return err
			}
			req.ChannelURL, req.Type = args[0], t

			return runRequest(cmd, cfg, studio.ChannelAnalysis{ChannelAnalysisRequest: req}, asJSON)
		},
	}

	cmd.Flags().StringVar(&kind, "type", string(provider.AnalysisSWOT), "swot|content_strategy|audience_engagement|growth_opportunities")
	cmd.Flags().StringVar(&req.Language, "language", "", "Report language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func parseAnalysisType(s string) (provider.AnalysisType, error) {
	switch t := provider.AnalysisType(s); t {
	case provider.AnalysisSWOT, provider.AnalysisContentStrategy, provider.AnalysisAudienceEngagement, provider.AnalysisGrowth:
		return t, nil
	default:
		return "", fmt.Errorf("unknown analysis type %q", s)
	}
}
