package conversation

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Classification is the classifier's verdict on one inbound message.
// Qualifying answers may carry extracted lead fields.
type Classification struct {
	Signal    Signal
	Name      string
	Email     string
	BudgetMin *int
	BudgetMax *int
}

// Classifier turns raw message text into an intent signal. Implementations
// are external collaborators; the engine only consumes their output and
// treats any error as a GENERIC signal.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// KeywordClassifier is the built-in fallback classifier: keyword and pattern
// matching good enough for routing, intended to be replaced by a real NLP
// collaborator in production deployments.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	budgetPattern = regexp.MustCompile(`(?i)(?:budget|around|up to|max)\D{0,10}(\d[\d,.]{2,})\s*(k|m)?`)
)

var photoKeywords = []string{"photo", "picture", "image", "pics", "floor plan", "video"}

var consultationKeywords = []string{
	"consultation", "call me", "speak to", "talk to", "viewing",
	"visit", "appointment", "meet", "schedule",
}

// Classify applies keyword heuristics in priority order:
// consultation > photo > qualifying answer > question > generic.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Classification, error) {
	lowered := strings.ToLower(text)

	for _, kw := range consultationKeywords {
		if strings.Contains(lowered, kw) {
			return Classification{Signal: SignalConsultationRequest}, nil
		}
	}

	for _, kw := range photoKeywords {
		if strings.Contains(lowered, kw) {
			return Classification{Signal: SignalPhotoRequest}, nil
		}
	}

	if c, ok := k.extractQualifiers(text); ok {
		return c, nil
	}

	if strings.Contains(text, "?") {
		return Classification{Signal: SignalQuestion}, nil
	}

	return Classification{Signal: SignalGeneric}, nil
}

func (k *KeywordClassifier) extractQualifiers(text string) (Classification, bool) {
	c := Classification{Signal: SignalQualifyingAnswer}
	found := false

	if email := emailPattern.FindString(text); email != "" {
		c.Email = email
		found = true
	}

	if match := budgetPattern.FindStringSubmatch(text); len(match) >= 2 {
		if amount, ok := parseAmount(match[1], match[2]); ok {
			c.BudgetMax = &amount
			found = true
		}
	}

	return c, found
}

func parseAmount(raw, suffix string) (int, bool) {
	// Commas are thousands separators; a dot is a decimal point so that
	// "2.5m" means two and a half million.
	cleaned := strings.ReplaceAll(raw, ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		amount *= 1_000
	case "m":
		amount *= 1_000_000
	}
	return int(amount), true
}

var _ Classifier = (*KeywordClassifier)(nil)
