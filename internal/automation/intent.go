package automation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is what a notification text asks for beyond being shown.
type Intent struct {
	// Traffic asks for route conditions to a destination.
	Traffic bool

	// News asks for headlines. NewsQuery is the extracted topic, empty for
	// general headlines.
	News      bool
	NewsQuery string

	// Commute marks a "leaving for work" reminder; the work location is
	// resolved and weather is fetched downstream.
	Commute bool
}

// IntentClassifier inspects notification text.
type IntentClassifier interface {
	Classify(text string) Intent
}

// KeywordClassifier matches accent-insensitive keywords.
type KeywordClassifier struct {
	Traffic []string
	News    []string
	Commute []string

	// Anchors introduce a news topic, tried in order ("sur l'économie").
	// Multi-word anchors are space separated.
	Anchors []string
}

// NewKeywordClassifier returns a classifier with the French and English
// keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Traffic: []string{"trafic", "traffic", "bouchon", "embouteillage", "circulation", "itineraire", "trajet"},
		News:    []string{"actualite", "actualites", "actus", "news", "nouvelles", "infos", "journal"},
		Commute: []string{
			"depart au travail", "partir au travail", "je pars au travail", "en route pour le travail",
			"leaving for work", "going to work", "off to work",
		},
		Anchors: []string{"a propos de", "concernant", "sur", "de"},
	}
}

// Classify implements IntentClassifier.
func (c *KeywordClassifier) Classify(text string) Intent {
	folded := fold(text)

	var in Intent
	in.Traffic = containsAny(folded, c.Traffic)
	in.Commute = containsAny(folded, c.Commute)
	in.News = containsAny(folded, c.News)
	if in.News {
		in.NewsQuery = c.extractTopic(text)
	}
	return in
}

// extractTopic returns the words after the first anchor found, keeping the
// original spelling. Anchors are matched on whole folded words.
func (c *KeywordClassifier) extractTopic(text string) string {
	words := strings.Fields(text)
	foldedWords := make([]string, len(words))
	for i, w := range words {
		foldedWords[i] = fold(w)
	}

	for _, anchor := range c.Anchors {
		aw := strings.Fields(anchor)
		for i := 0; i+len(aw) <= len(words); i++ {
			if !wordsEqual(foldedWords[i:i+len(aw)], aw) {
				continue
			}
			topic := strings.Join(words[i+len(aw):], " ")
			topic = strings.TrimRightFunc(topic, func(r rune) bool {
				return unicode.IsPunct(r) && r != '\'' && r != '’'
			})
			if topic = strings.TrimSpace(topic); topic != "" {
				return topic
			}
		}
	}
	return ""
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// containsAny reports whether s contains a keyword starting on a word
// boundary, so "trafic" matches "Trafic:" but "sur" does not match "assure".
func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		for from := 0; ; {
			i := strings.Index(s[from:], kw)
			if i < 0 {
				break
			}
			i += from
			if prev, _ := utf8.DecodeLastRuneInString(s[:i]); i == 0 || !isWordRune(prev) {
				return true
			}
			from = i + 1
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fold lower-cases s and strips diacritics: "Actualités" -> "actualites".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
