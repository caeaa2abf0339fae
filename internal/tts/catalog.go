package tts

import (
	"fmt"
	"strings"
)

// PrebuiltVoice is a voice offered by the hosted speech model.
type PrebuiltVoice struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// DefaultVoice is used when no voice is configured.
const DefaultVoice = "Kore"

var prebuiltVoices = []PrebuiltVoice{
	{"Achernar", "Young male, clear and energetic. Suits ads and announcements."},
	{"Achird", "Young male, friendly and bright. Suits tutorials and podcasts."},
	{"Algenib", "Middle-aged male, authoritative and composed. Ideal for documentaries."},
	{"Algieba", "Middle-aged female, elegant and gentle. Suits audiobooks."},
	{"Alnilam", "Deep male, strong and weighty. Suits film trailers."},
	{"Aoede", "High female, clear and melodic. Suits fairy tales."},
	{"Autonoe", "Low female, alluring and mysterious. Suits horror storytelling."},
	{"Callirrhoe", "Female, polished and professional. Ideal for business phone lines."},
	{"Charon", "Older male, learned and reflective. Suits a narrator role."},
	{"Despina", "Young female, playful and lively. Suits entertainment content."},
	{"Enceladus", "Robotic electronic male. Ideal for science fiction and virtual assistants."},
	{"Erinome", "Eerie whispering female. Suits mysterious and ghostly moods."},
	{"Fenrir", "Growling fierce male. Suits monster characters and games."},
	{"Gacrux", "Middle-aged male, calm and trustworthy. Suits news."},
	{"Iapetus", "Giant echoing epic male. Ideal for game narration."},
	{"Kore", "Young female, sweet and tender. Suits romantic content."},
	{"Laomedeia", "Regal noble female. Suits royal characters."},
	{"Leda", "Mature female, warm and motherly. Suits bedtime stories."},
	{"Orus", "Heroic male, resonant and resolute. Suits action games."},
	{"Puck", "Mischievous quick high female. Suits cartoon and elf characters."},
	{"Pulcherrima", "Graceful refined female. Ideal for art tutorials."},
	{"Rasalgethi", "Old hoarse weary male. Suits veteran characters."},
	{"Sadachbia", "Sad melancholic female. Suits poetry and tragic monologues."},
	{"Sadaltager", "Tense urgent female. Suits action scenes and sports commentary."},
	{"Schedar", "Commanding decisive female. Suits leader characters."},
	{"Sulafat", "Wise slow deep male. Suits philosophy lectures."},
	{"Umbriel", "Dark ghostly male. Suits villains and horror stories."},
	{"Vindemiatrix", "Sharp witch-like female. Suits villain characters."},
	{"Zephyr", "Soft romantic male. Suits poetry and romantic ads."},
	{"Zubenelgenubi", "Strange otherworldly voice. Suits science fiction."},
}

// PrebuiltVoices returns the hosted voice catalog in alphabetical order.
func PrebuiltVoices() []PrebuiltVoice {
	return append([]PrebuiltVoice(nil), prebuiltVoices...)
}

// LookupPrebuilt finds a voice by case-insensitive ID and returns its
// canonical spelling.
func LookupPrebuilt(id string) (PrebuiltVoice, error) {
	for _, v := range prebuiltVoices {
		if strings.EqualFold(v.ID, id) {
			return v, nil
		}
	}
	return PrebuiltVoice{}, fmt.Errorf("unknown prebuilt voice %q", id)
}
