package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTextForTTS(t *testing.T) {
	cases := map[string]string{
		"**Breathe** slowly, *one* step at a time.": "Breathe slowly, one step at a time.",
		"## Coping ideas\n- walk\n- `journal`":      "Coping ideas - walk - journal",
		"You did great 😊🎉!":                        "You did great !",
		"⚠️ Ollama is not connected.":               "Ollama is not connected.",
		"line one\n\nline two":                      "line one line two",
		"آپ کیسا محسوس کر رہے ہیں؟":                 "آپ کیسا محسوس کر رہے ہیں؟",
		"   ":                                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeTextForTTS(in), "input %q", in)
	}
}
