package core

import "fmt"

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageUrdu    Language = "ur"
)

// LanguageProfile bundles everything that changes with the active language:
// the locale handed to speech engines, the persona sent to the backend and
// every localized string the session can surface.
type LanguageProfile struct {
	Language                Language `json:"language"`
	Locale                  string   `json:"locale"`
	SystemPrompt            string   `json:"-"`
	Greeting                string   `json:"-"`
	UnavailableWarning      string   `json:"-"`
	ClarificationPrompt     string   `json:"-"`
	FailureMessage          string   `json:"-"`
	SpeechUnavailableNotice string   `json:"-"`
	InputPlaceholder        string   `json:"input_placeholder"`
	ToggleLabel             string   `json:"toggle_label"` // Label of the control that switches to the other language.
}

var profiles = map[Language]LanguageProfile{
	LanguageEnglish: {
		Language:                LanguageEnglish,
		Locale:                  "en-US",
		SystemPrompt:            "You are a compassionate English-speaking AI therapist. Respond empathetically and professionally.",
		Greeting:                "Hello! I am your AI therapy companion. How are you feeling today?",
		UnavailableWarning:      "⚠️ Ollama is not connected. Please make sure it is running.",
		ClarificationPrompt:     "Can you please clarify?",
		FailureMessage:          "Sorry! Something went wrong.",
		SpeechUnavailableNotice: "Speech Recognition is not supported",
		InputPlaceholder:        "Type your message...",
		ToggleLabel:             "اردو",
	},
	LanguageUrdu: {
		Language:                LanguageUrdu,
		Locale:                  "ur-PK",
		SystemPrompt:            "You are a compassionate Urdu-speaking AI therapist. Respond empathetically and professionally in Urdu.",
		Greeting:                "السلام علیکم! میں آپ کا AI تھراپی ساتھی ہوں۔ آپ کیسا محسوس کر رہے ہیں آج؟",
		UnavailableWarning:      "⚠️ Ollama کنیکٹ نہیں ہے۔ براہ کرم یقینی بنائیں کہ یہ چل رہا ہے۔",
		ClarificationPrompt:     "کیا آپ مزید وضاحت کر سکتے ہیں؟",
		FailureMessage:          "معذرت! کچھ مسئلہ ہوا ہے۔",
		SpeechUnavailableNotice: "اسپیچ ریکگنیشن دستیاب نہیں ہے",
		InputPlaceholder:        "اپنا پیغام ٹائپ کریں...",
		ToggleLabel:             "English",
	},
}

// Profile returns the profile for lang. Unknown languages resolve to English.
func Profile(lang Language) LanguageProfile {
	if p, ok := profiles[lang]; ok {
		return p
	}
	return profiles[LanguageEnglish]
}

// Toggle returns the other supported language.
func (l Language) Toggle() Language {
	if l == LanguageUrdu {
		return LanguageEnglish
	}
	return LanguageUrdu
}

// ParseLanguage validates a config or wire value.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageEnglish, LanguageUrdu:
		return Language(s), nil
	case "":
		return LanguageEnglish, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}
