package router

import (
	"strings"

	"github.com/germanamz/assistant/pkg/models"
)

// Intent is the coarse purpose of a prompt.
type Intent string

const (
	IntentChat     Intent = "chat"
	IntentCoding   Intent = "coding"
	IntentCreative Intent = "creative"
	IntentImage    Intent = "image"
	IntentSearch   Intent = "search"
	IntentVision   Intent = "vision"
	IntentSpeech   Intent = "speech"
)

// Type returns the model type that serves the intent.
func (i Intent) Type() models.Type {
	switch i {
	case IntentCoding:
		return models.Coding
	case IntentCreative:
		return models.Creative
	case IntentImage:
		return models.Image
	case IntentSearch:
		return models.Search
	case IntentVision:
		return models.Vision
	case IntentSpeech:
		return models.Speech
	default:
		return models.Chat
	}
}

// Buckets are checked in this order; an equal score keeps the earlier one.
var intentOrder = []Intent{IntentImage, IntentCoding, IntentSearch, IntentCreative}

var keywordBuckets = map[Intent][]string{
	IntentImage: {
		"generate an image", "generate a picture", "draw ", "drawing of", "picture of", "image of",
		"illustration", "render a", "logo for", "photo of", "paint ",
	},
	IntentCoding: {
		"function", "compile", "stack trace", "traceback", "exception", "refactor", "bug", "regex",
		"golang", "python", "javascript", "typescript", "rust", "sql", "unit test", "api endpoint",
		"segfault", "null pointer", "snippet", "algorithm",
	},
	IntentSearch: {
		"latest", "news", "today", "this week", "current price", "search the web", "look up",
		"who won", "weather in", "stock price",
	},
	IntentCreative: {
		"poem", "story", "lyrics", "song", "haiku", "limerick", "fiction", "screenplay", "novel",
		"write me a", "creative", "slogan",
	},
}

// codeMarkers are shapes that only show up in code.
var codeMarkers = []string{"```", "func ", "def ", "#include", "=>", "();", "</", "select * from"}

// Classify guesses the intent of prompt. Prompts matching nothing are chat.
func Classify(prompt string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	if normalized == "" {
		return IntentChat
	}

	scores := make(map[Intent]int)
	for intent, words := range keywordBuckets {
		for _, w := range words {
			if strings.Contains(normalized, w) {
				scores[intent] += 3
			}
		}
	}

	for _, m := range codeMarkers {
		if strings.Contains(normalized, m) {
			scores[IntentCoding] += 4
		}
	}

	best, bestScore := IntentChat, 0
	for _, intent := range intentOrder {
		if s := scores[intent]; s > bestScore {
			best, bestScore = intent, s
		}
	}

	return best
}
