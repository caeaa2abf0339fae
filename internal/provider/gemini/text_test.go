package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/go-genstudio/internal/provider"
)

func TestExpandIdea(t *testing.T) {
	t.Run("freestyle", func(t *testing.T) {
		text := &textStub{replies: []string{`{"english":"A fox","translation":"Một con cáo"}`}}
		c := testClient(nil, text)

		got, err := c.ExpandIdea(context.Background(), provider.IdeaRequest{
			Idea:    "fox",
			Mode:    provider.ModeFreestyle,
			Options: provider.TechOptions{Style: "Anime"},
		})
		if err != nil {
			t.Fatalf("ExpandIdea: %v", err)
		}

		if got.English != "A fox" || got.Translation != "Một con cáo" {
			t.Errorf("prompts = %+v", got)
		}

		req := text.reqs[0]
		if req.Model != DefaultTextModel || req.Schema == nil {
			t.Errorf("request = %+v", req)
		}

		for _, want := range []string{`"fox"`, "- Style: Anime", "Vietnamese translation"} {
			if !strings.Contains(req.Prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("focused uses branch guide", func(t *testing.T) {
		text := &textStub{replies: []string{`{"english":"e","translation":"t"}`}}
		c := testClient(nil, text)

		_, err := c.ExpandIdea(context.Background(), provider.IdeaRequest{
			Idea:     "dragon",
			Mode:     provider.ModeFocused,
			Branch:   provider.BranchModernCreature,
			Language: "German",
		})
		if err != nil {
			t.Fatalf("ExpandIdea: %v", err)
		}

		prompt := text.reqs[0].Prompt
		for _, want := range []string{"creature_concept", "negative_prompt_suggestions", "German"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		if strings.Contains(prompt, "clothing_style") {
			t.Error("prompt includes another branch's guide")
		}
	})

	t.Run("focused rejects unknown branch", func(t *testing.T) {
		c := testClient(nil, &textStub{})
		if _, err := c.ExpandIdea(context.Background(), provider.IdeaRequest{Idea: "x", Mode: provider.ModeFocused, Branch: "robots"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("raw text fallback", func(t *testing.T) {
		c := testClient(nil, &textStub{replies: []string{"just a prompt"}})

		got, err := c.ExpandIdea(context.Background(), provider.IdeaRequest{Idea: "x"})
		if err != nil {
			t.Fatalf("ExpandIdea: %v", err)
		}

		if got.English != "just a prompt" || got.Translation != "just a prompt" {
			t.Errorf("prompts = %+v", got)
		}
	})
}

func TestAnalyzeImage_Focused(t *testing.T) {
	text := &textStub{replies: []string{
		"```json\n{\"category\":\"landscape_scene\"}\n```",
		`{"english":"cliffs","translation":"vách đá"}`,
	}}
	c := testClient(nil, text)
	img := provider.Image{Data: []byte("x"), MIMEType: "image/png"}

	got, err := c.AnalyzeImage(context.Background(), provider.AnalyzeRequest{Image: img, Mode: provider.ModeFocused})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}

	if got.English != "cliffs" {
		t.Errorf("prompts = %+v", got)
	}

	if len(text.reqs) != 2 || len(text.reqs[0].Images) != 1 {
		t.Fatalf("requests = %+v", text.reqs)
	}

	if !strings.Contains(text.reqs[1].Prompt, "classified as **landscape_scene**") {
		t.Errorf("second prompt = %q", text.reqs[1].Prompt)
	}
}

func TestAnalyzeImage_BadClassification(t *testing.T) {
	c := testClient(nil, &textStub{replies: []string{`{"category":"robots"}`}})

	if _, err := c.AnalyzeImage(context.Background(), provider.AnalyzeRequest{Mode: provider.ModeFocused}); err == nil {
		t.Error("expected classification error")
	}
}

func TestStoryboard(t *testing.T) {
	reply := `{"title":"T","logline":"L","scenes":[{"scene":1,"description":"d","narration":"n","prompt":"p"},{"scene":2,"description":"d2","narration":"n2","prompt":"p2"}]}`
	text := &textStub{replies: []string{reply}}
	c := testClient(nil, text)

	sb, err := c.Storyboard(context.Background(), provider.StoryboardRequest{Topic: "rain", DurationSeconds: 30, Language: "English"})
	if err != nil {
		t.Fatalf("Storyboard: %v", err)
	}

	if sb.Title != "T" || len(sb.Scenes) != 2 || sb.Scenes[1].Number != 2 || sb.Scenes[1].Narration != "n2" {
		t.Errorf("storyboard = %+v", sb)
	}

	if !strings.Contains(text.reqs[0].Prompt, "roughly 6 scenes") {
		t.Errorf("prompt = %q", text.reqs[0].Prompt)
	}
}

func TestStoryboard_FromScript(t *testing.T) {
	text := &textStub{replies: []string{`{"title":"T","logline":"L","scenes":[]}`}}

	if _, err := testClient(nil, text).Storyboard(context.Background(), provider.StoryboardRequest{Script: "INT. HOUSE"}); err != nil {
		t.Fatalf("Storyboard: %v", err)
	}

	if !strings.Contains(text.reqs[0].Prompt, "INT. HOUSE") {
		t.Error("script missing from prompt")
	}

	if _, err := testClient(nil, text).Storyboard(context.Background(), provider.StoryboardRequest{}); err == nil {
		t.Error("expected error without topic or script")
	}
}

func TestYouTubeScript(t *testing.T) {
	reply := `{"titles":["a","b","c"],"hook":"h","descriptions":["d1","d2"],"thumbnail_captions":["x","y","z"],"story_parts":["1","2","3","4","5","6","7"]}`
	c := testClient(nil, &textStub{replies: []string{reply}})

	s, err := c.YouTubeScript(context.Background(), provider.ScriptRequest{Topic: "family"})
	if err != nil {
		t.Fatalf("YouTubeScript: %v", err)
	}

	if len(s.Titles) != 3 || len(s.StoryParts) != 7 || s.Hook != "h" {
		t.Errorf("script = %+v", s)
	}
}

func TestCloneStory(t *testing.T) {
	text := &textStub{replies: []string{"new story"}}
	c := testClient(nil, text)

	got, err := c.CloneStory(context.Background(), provider.StoryCloneRequest{Story: "once", Creativity: provider.CreativityCreative})
	if err != nil {
		t.Fatalf("CloneStory: %v", err)
	}

	if got != "new story" || text.reqs[0].Model != DefaultProModel {
		t.Errorf("got %q model %q", got, text.reqs[0].Model)
	}

	prompt := text.reqs[0].Prompt
	if !strings.Contains(prompt, "Creativity Level:** creative") || strings.Count(prompt, "decide for me") != 2 {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestAnalyzeChannel_StreamsProgress(t *testing.T) {
	text := &textStub{chunks: []string{"## SWOT\n", "Strengths"}}
	c := testClient(nil, text)

	var progress []string
	got, err := c.AnalyzeChannel(context.Background(),
		provider.ChannelAnalysisRequest{ChannelURL: "https://youtube.com/@x", Type: provider.AnalysisSWOT},
		func(m string) { progress = append(progress, m) })
	if err != nil {
		t.Fatalf("AnalyzeChannel: %v", err)
	}

	if got != "## SWOT\nStrengths" {
		t.Errorf("analysis = %q", got)
	}

	if len(progress) != 4 || progress[len(progress)-1] != "Analysis complete!" {
		t.Errorf("progress = %q", progress)
	}
}

func TestTextErrorPropagates(t *testing.T) {
	boom := errors.New("API key not valid")
	c := testClient(nil, &textStub{err: boom})

	_, err := c.YouTubeScript(context.Background(), provider.ScriptRequest{Topic: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ A int }
	if err := decodeJSON("```json\n{\"A\": 3}\n```", &v); err != nil || v.A != 3 {
		t.Errorf("decodeJSON fenced = %v, %+v", err, v)
	}

	if err := decodeJSON("nope", &v); err == nil {
		t.Error("expected error")
	}
}
