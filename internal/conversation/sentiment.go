// ABOUTME: Sentiment classifiers for outbound replies and inbound messages
// ABOUTME: FixedClassifier labels everything the same; LexiconClassifier counts cue words

package conversation

import (
	"strings"
	"unicode"

	"github.com/2389/coven-inbox/internal/store"
)

// Classifier assigns a sentiment to a message body.
type Classifier interface {
	Classify(body string) store.Sentiment
}

// FixedClassifier returns the same sentiment for every body.
type FixedClassifier struct {
	Sentiment store.Sentiment
}

func (f FixedClassifier) Classify(string) store.Sentiment {
	if !f.Sentiment.Valid() {
		return store.SentimentNeutral
	}
	return f.Sentiment
}

var (
	positiveCues = []string{
		"thanks", "thank", "great", "love", "awesome", "perfect", "amazing",
		"excellent", "happy", "appreciate", "wonderful", "gracias", "obrigado",
	}
	negativeCues = []string{
		"angry", "bad", "broken", "terrible", "awful", "refund", "worst",
		"disappointed", "complaint", "cancel", "late", "never", "damaged", "wrong",
	}
)

// LexiconClassifier scores a body by counting positive and negative cue
// words. Ties, including no cues at all, are neutral.
type LexiconClassifier struct {
	positive map[string]bool
	negative map[string]bool
}

// NewLexiconClassifier creates a classifier with the built-in cue lists.
func NewLexiconClassifier() *LexiconClassifier {
	l := &LexiconClassifier{
		positive: make(map[string]bool, len(positiveCues)),
		negative: make(map[string]bool, len(negativeCues)),
	}
	for _, w := range positiveCues {
		l.positive[w] = true
	}
	for _, w := range negativeCues {
		l.negative[w] = true
	}
	return l
}

func (l *LexiconClassifier) Classify(body string) store.Sentiment {
	words := strings.FieldsFunc(strings.ToLower(body), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	score := 0
	for _, w := range words {
		switch {
		case l.positive[w]:
			score++
		case l.negative[w]:
			score--
		}
	}

	switch {
	case score > 0:
		return store.SentimentPositive
	case score < 0:
		return store.SentimentNegative
	default:
		return store.SentimentNeutral
	}
}
