package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/go-genstudio/internal/provider"
)

// fieldGuide lists the descriptive fields the model fills in for a
// category, each with example values.
type fieldGuide map[string]string

var commonGuide = fieldGuide{
	"art_style":                   "e.g., photorealistic, cinematic, anime, watercolor, impressionistic",
	"lighting":                    "e.g., soft morning light, dramatic chiaroscuro, neon glow, golden hour",
	"color_palette":               "e.g., vibrant and saturated, monochrome, pastel, earthy tones",
	"camera_shot":                 "e.g., wide-angle, macro, aerial view, dutch angle, portrait",
	"composition":                 "e.g., rule of thirds, leading lines, symmetrical, minimalist",
	"detail_level":                "e.g., hyper-detailed, intricate, simple, abstract",
	"negative_prompt_suggestions": "e.g., ugly, deformed, blurry, bad anatomy, extra limbs",
}

var branchGuides = map[provider.Branch]fieldGuide{
	provider.BranchModernHuman: {
		"character_concept": "e.g., cyberpunk hacker, elegant queen, gritty detective, futuristic soldier",
		"clothing_style":    "e.g., high-fashion couture, tactical gear, vintage streetwear, formal suit",
		"facial_expression": "e.g., determined, serene, melancholic, joyful",
		"setting":           "e.g., neon-lit city street, opulent throne room, abandoned warehouse, high-tech lab",
	},
	provider.BranchPrehistoricHuman: {
		"character_concept":  "e.g., wise shaman, fierce hunter, tribal chieftain, young gatherer",
		"clothing_materials": "e.g., animal hides, woven fibers, bone ornaments, leather straps",
		"tools_weapons":      "e.g., stone-tipped spear, obsidian knife, bow and arrow, ceremonial staff",
		"environment":        "e.g., lush jungle, icy tundra, savanna plains, cave dwelling with fire",
	},
	provider.BranchModernCreature: {
		"creature_concept": "e.g., bio-mechanical dragon, ethereal forest spirit, robotic wolf, colossal city leviathan",
		"key_features":     "e.g., glowing eyes, metallic feathers, crystalline scales, integrated weaponry",
		"abilities":        "e.g., breathes plasma, camouflages with light, controls technology, telekinetic powers",
		"habitat":          "e.g., post-apocalyptic city ruins, enchanted digital forest, deep-sea trench, orbital station",
	},
	provider.BranchPrehistoricCreature: {
		"creature_concept":    "e.g., tyrannosaurus rex with feathers, saber-toothed tiger, woolly mammoth, velociraptor pack",
		"physical_attributes": "e.g., massive size, sharp claws, powerful jaws, thick fur, vibrant plumage",
		"behavior":            "e.g., hunting, grazing, migrating, defending territory",
		"environment":         "e.g., primordial swamp, volcanic landscape, dense fern forest, vast grasslands",
	},
	provider.BranchLandscapeScene: {
		"scene_concept":   "e.g., floating sky islands, futuristic underwater city, enchanted alien forest, volcanic wasteland",
		"key_elements":    "e.g., strange flora and fauna, towering crystal structures, ancient ruins, cascading waterfalls",
		"time_of_day":     "e.g., twin-sun sunset, bioluminescent night, perpetual twilight, stormy afternoon",
		"mood_atmosphere": "e.g., mysterious and awe-inspiring, peaceful and serene, dangerous and foreboding, vibrant and full of life",
	},
}

// structureGuide renders the common and branch guides as indented JSON.
func structureGuide(b provider.Branch) string {
	guide := map[string]fieldGuide{
		"common":  commonGuide,
		string(b): branchGuides[b],
	}
	data, _ := json.MarshalIndent(guide, "", "  ")
	return string(data)
}

func preferencesBlock(o provider.TechOptions, instruction string) string {
	lines := o.Preferences()
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("\n**User's Technical Preferences (IMPORTANT: You MUST %s):**\n%s\n", instruction, strings.Join(lines, "\n"))
}

func focusedIdeaPrompt(req provider.IdeaRequest, lang string) string {
	return fmt.Sprintf(`**User's Core Idea:** %q
**Contextual Theme:** %q
You are an expert prompt engineer. Your task is to expand the user's simple idea into a detailed specification based on the theme.
%s
**Instructions:**
1. Analyze the user's idea, contextual theme, and especially their technical preferences.
2. Mentally fill out the JSON structure below with creative details that match all the inputs.
3. Use ALL details from your mental model to write two rich, descriptive paragraphs: "english" in English and "translation" in %s.
4. The final paragraph MUST include a comprehensive negative prompt.

**JSON Structure Guide:** %s`,
		req.Idea, req.Branch, preferencesBlock(req.Options, "follow these"), lang, structureGuide(req.Branch))
}

func freestyleIdeaPrompt(req provider.IdeaRequest, lang string) string {
	return fmt.Sprintf(`You are a creative expert and prompt engineer. Your task is to take the user's core idea and expand it into a single, rich, descriptive, and imaginative paragraph in English, suitable for an advanced AI image generation model. You have creative freedom but must respect the user's technical preferences if provided. Also, create a %[1]s translation of the final English paragraph.

**User's Core Idea:** %[2]q
%[3]s
**Instructions:**
1. Brainstorm creative details related to the idea and preferences.
2. Write the final English prompt as a single, detailed paragraph in "english".
3. Provide a faithful %[1]s translation of that English prompt in "translation".
4. Include a comprehensive negative prompt suggestion within the English prompt using a standard format like '--neg ...' or 'Negative prompt: ...' at the end.`,
		lang, req.Idea, preferencesBlock(req.Options, "incorporate these into your description"))
}

func freestyleAnalysisPrompt(o provider.TechOptions, lang string) string {
	return "You are an expert image analyst and prompt engineer. Your task is to analyze a user's image and describe it in extreme detail to create a high-quality generation prompt. " +
		"Focus on objective details: subject, composition, lighting, style, color palette, and any specific artistic techniques. " +
		"Return the prompt in English as \"english\" and its " + lang + " translation as \"translation\".\n" +
		preferencesBlock(o, "creatively reinterpret the image according to these")
}

func classificationPrompt() string {
	names := make([]string, 0, len(provider.Branches()))
	for _, b := range provider.Branches() {
		names = append(names, string(b))
	}
	return "Analyze the image and classify it into one of the following categories: " + strings.Join(names, ", ") + "."
}

func focusedAnalysisPrompt(b provider.Branch, o provider.TechOptions, lang string) string {
	return fmt.Sprintf(`You are an expert image analyst. The image has been classified as **%s**.
Your task is to perform a deep, structured analysis based ONLY on that category's specific JSON schema to generate a rich, descriptive prompt.
Return the prompt in English as "english" and its %s translation as "translation".
%s
**JSON Structure for Analysis:**
%s`, b, lang, preferencesBlock(o, "creatively reinterpret the image according to these"), structureGuide(b))
}

func editPrompt(req provider.EditRequest) string {
	ratio := req.AspectRatio
	p := fmt.Sprintf(`You are an expert AI image editor. Your primary and most critical task is to produce an image with the **EXACT aspect ratio of %[1]s**.

**ABSOLUTE RULES:**
1.  **ASPECT RATIO FIRST:** Before any other modification, you MUST ensure the final canvas has a strict %[1]s aspect ratio. To achieve this, you must intelligently CROP the original image or creatively EXTEND the scene (outpainting). You are FORBIDDEN from stretching, distorting, squashing the image, or adding letterbox/pillarbox bars. This is the top priority.
2.  **USER REQUEST:** Once the aspect ratio is guaranteed, apply the user's edit request: %[2]q.
3.  **MAINTAIN QUALITY:** The final result must be a high-quality, photorealistic masterpiece. All edits must blend seamlessly.
`, ratio, req.Instruction)
	if req.Variation > 0 {
		p += fmt.Sprintf("\n--variation %d", req.Variation)
	}
	return p
}

func restorePrompt(req provider.RestoreRequest) string {
	var b strings.Builder
	b.WriteString(`You are a master AI photo restorer. Your task is to restore this old photograph to pristine, masterpiece quality.
CRITICAL INSTRUCTIONS:
1.  **Restore:** Fix all scratches, tears, folds, and discoloration.
2.  **Enhance:** Drastically improve clarity, sharpness, and fine details, aiming for a hyper-realistic result.
3.  **Preserve:** Do not colorize the photo unless the original colors are obvious. The output MUST have the exact same aspect ratio as the input. Do not crop, stretch, or alter the original composition in any way.
`)

	switch {
	case !req.Multiple:
		b.WriteString("\nThe photo contains a single person. Here are some details to help you restore the face and features accurately:")
		if req.Gender != "" {
			b.WriteString("\n- Gender: " + req.Gender)
		}
		if req.Age != "" {
			b.WriteString("\n- Estimated Age: " + req.Age)
		}
		if req.Description != "" {
			b.WriteString("\n- Additional Description: " + req.Description)
		}
	case req.Description != "":
		b.WriteString("\nThe photo contains multiple people. Here is a general description of the scene to guide the restoration: " + req.Description)
	}
	return b.String()
}

const upscalePrompt = `You are an expert AI image upscaler. Your task is to upscale this image to a higher resolution, creating a masterpiece.
CRITICAL INSTRUCTIONS:
1.  **Upscale & Enhance:** Drastically enhance its details, clarity, and sharpness.
2.  **Preserve:** Perfectly preserve the original artistic style and content. Do not add, remove, or change any elements. The goal is a high-quality, hyper-detailed, larger version.
3.  **Aspect Ratio:** The output image MUST have the exact same aspect ratio as the input image. Do not crop it.
`

func compositePrompt(req provider.CompositeRequest) string {
	return fmt.Sprintf(`**PRIMARY TASK:** You are an expert AI photo compositor. Your most critical objective is to produce a final image with the **EXACT aspect ratio of %[1]s**.

**ABSOLUTE RULES & WORKFLOW:**
1.  **ESTABLISH CANVAS (CRITICAL):** Your first step is to establish the final image canvas with a strict %[1]s aspect ratio.
    *   If a 'BACKGROUND' image is provided, you MUST intelligently CROP or EXTEND it to fit this ratio perfectly.
    *   If no 'BACKGROUND' is provided, you MUST imagine and create a new scene that inherently has this ratio.
    *   You are FORBIDDEN from stretching, distorting, squashing images, or adding letterbox/pillarbox bars. This rule is non-negotiable.

2.  **IDENTIFY SUBJECTS:** The images labeled 'CHARACTER' contain the people you must use. You MUST preserve their faces and identities as accurately as possible. The user's description will refer to them by these numbers (e.g., "Character 1", "Character 5").

3.  **COMPOSITION & INTEGRATION:** Arrange the identified characters within your correctly-ratioed scene according to the user's description. You must ensure the final composition is seamless, photorealistic, and high-quality. Lighting, shadows, and perspective must be consistent across all elements.

4.  **GENERATE:** Produce a single, stunning image that fulfills all the above criteria.

**USER DESCRIPTION:** %[2]q`, req.AspectRatio, req.Description)
}

func speechPrompt(req provider.SpeechRequest) string {
	if style := strings.TrimSpace(req.Style); style != "" {
		return fmt.Sprintf("Read in a %s style: %s", style, req.Text)
	}
	return req.Text
}

func dialoguePrompt(req provider.DialogueRequest) string {
	names := make([]string, len(req.Speakers))
	for i, s := range req.Speakers {
		names[i] = s.Name
	}
	return fmt.Sprintf("TTS the following conversation between %s:\n%s", strings.Join(names, " and "), req.Script)
}

const storyboardShape = `{
  "title": "A short, catchy title",
  "logline": "A one-sentence summary of the video",
  "scenes": [
    {
      "scene": 1,
      "description": "Visual description of the scene.",
      "narration": "The narration or dialogue for this scene.",
      "prompt": "A detailed English prompt for an AI image/video generator to create this scene's visual."
    }
  ]
}`

func storyboardPrompt(req provider.StoryboardRequest, lang string) string {
	if strings.TrimSpace(req.Script) != "" {
		return fmt.Sprintf(`Based on the provided script, generate a video storyboard. Target duration: %d seconds. Language: %s.
The AI should break down the script into logical scenes. For each scene, provide a visual description and a detailed English prompt for an AI image/video generator.

Provided Script:
"""
%s
"""

The output must be a JSON object with this exact structure:
%s`, req.DurationSeconds, lang, req.Script, storyboardShape)
	}

	return fmt.Sprintf(`Create a video storyboard. Topic: %q. Target duration: %d seconds. Language for narration and descriptions: %s.

The output must be a JSON object with this exact structure:
%s

Base the number of scenes on the target duration. A %d-second video should have roughly %d scenes.`,
		req.Topic, req.DurationSeconds, lang, storyboardShape, req.DurationSeconds, req.SceneCount())
}

func scriptPrompt(req provider.ScriptRequest, lang string) string {
	return fmt.Sprintf(`You are an expert YouTube scriptwriter specializing in emotional, life-lesson storytelling channels. Your task is to write a complete YouTube video package based on the user's topic.

**Topic:** %[1]s

**Output Requirements:**
You MUST return a single JSON object with the following structure:
{
  "titles": ["Three compelling, emotional, click-worthy titles"],
  "hook": "A 15-25 second captivating hook to grab the viewer's attention immediately.",
  "descriptions": ["Two different YouTube video descriptions, including relevant keywords."],
  "thumbnail_captions": ["Three short, dramatic text captions for the video thumbnail."],
  "story_parts": [
    "Part 1: The beginning of the story, introducing the characters and conflict.",
    "Part 2: The conflict escalates.",
    "Part 3: A turning point or a major event.",
    "Part 4: The consequences of the turning point.",
    "Part 5: The climax of the story.",
    "Part 6: The resolution of the conflict.",
    "Part 7: The moral of the story and a concluding message for the audience."
  ]
}

Ensure the story is emotional, dramatic, and provides a valuable life lesson. All text must be in %[2]s.`, req.Topic, lang)
}

func decideForMe(s string) string {
	if strings.TrimSpace(s) == "" {
		return "decide for me"
	}
	return s
}

func cloneStoryPrompt(req provider.StoryCloneRequest, lang string) string {
	creativity := req.Creativity
	if creativity == "" {
		creativity = provider.CreativityBalanced
	}
	return fmt.Sprintf(`You are a master storyteller. Your task is to rewrite the following story.

**Original Story:**
"""
%s
"""

**Instructions:**
-   **Creativity Level:** %s.
    -   faithful: Adhere closely to the original plot, characters, and themes. The changes should be stylistic or minor.
    -   balanced: Keep the core characters and themes, but feel free to change the plot significantly.
    -   creative: Use the original story only as a loose inspiration. Create a new story with new characters and plot.
-   **Emotions & Twists (if provided):** %s. Inject these emotional themes or surprising plot twists into the new story.
-   **Number of Characters (if provided):** %s. The new story should feature this many main characters.

Rewrite the story according to these instructions. The output should be the full text of the new story in %s.`,
		req.Story, creativity, decideForMe(req.Twists), decideForMe(req.Characters), lang)
}

func channelAnalysisPrompt(req provider.ChannelAnalysisRequest, lang string) string {
	return fmt.Sprintf(`You are a world-class YouTube channel analyst. Perform a detailed analysis of the channel found at this URL: %s. Your analysis type is: %q.

Instructions:
1.  Assume you have full access to the channel's video transcripts, titles, descriptions, and comment sections.
2.  Provide your analysis in well-structured %s Markdown.
3.  Be insightful, actionable, and provide specific examples from the channel to back up your points.

Analysis type guidance:
-   swot: Strengths, Weaknesses, Opportunities, Threats.
-   content_strategy: Analyze the core topics, video formats, target audience, and overall content pillar. Suggest improvements.
-   audience_engagement: Analyze comment sentiment, recurring themes in discussions, and how the creator interacts with their audience.
-   growth_opportunities: Suggest new video ideas, collaboration opportunities, and potential new content formats or series based on the channel's niche.
`, req.ChannelURL, req.Type, lang)
}
