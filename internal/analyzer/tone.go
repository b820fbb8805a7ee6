package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"brandkit/internal/brand"
	"brandkit/internal/crawler"
	"brandkit/internal/logging"
)

// DefaultKeywordLimit caps the keyword list when none is configured.
const DefaultKeywordLimit = 8

// ErrNoText is returned by the tone pass when the crawl found no body text.
var ErrNoText = errors.New("no body text to classify")

// Voice is the tone pass output.
type Voice struct {
	Tone     string
	Keywords []string
	Industry string
}

// TonePass classifies the site's copy.
type TonePass interface {
	AnalyzeTone(ctx context.Context, art *crawler.Artifacts) (Voice, error)
}

// Classifier refines tone and industry, typically with a language model.
type Classifier interface {
	Classify(ctx context.Context, text string, keywords []string) (tone, industry string, err error)
}

// Tones and industries recognized by the lexicon classifier.
var (
	Tones      = []string{"professional", "friendly", "playful", "luxurious", "technical", "bold"}
	Industries = []string{"technology", "finance", "healthcare", "retail", "education", "food", "travel", "real_estate", "marketing"}
)

var toneLexicon = map[string][]string{
	"professional": {"solutions", "services", "clients", "expertise", "trusted", "industry", "consulting", "enterprise", "partner", "reliable"},
	"friendly":     {"welcome", "together", "community", "love", "happy", "help", "easy", "family", "friends", "care"},
	"playful":      {"fun", "play", "awesome", "wow", "yay", "adventure", "magic", "cool", "games", "colorful"},
	"luxurious":    {"luxury", "exclusive", "premium", "elegant", "crafted", "bespoke", "timeless", "refined", "finest", "heritage"},
	"technical":    {"api", "platform", "data", "integration", "developers", "performance", "scalable", "documentation", "infrastructure", "latency"},
	"bold":         {"bold", "power", "fearless", "unstoppable", "dominate", "revolution", "extreme", "limitless", "impact", "disrupt"},
}

var industryLexicon = map[string][]string{
	"technology":  {"software", "cloud", "app", "platform", "api", "developers", "saas", "digital", "tech", "data"},
	"finance":     {"bank", "banking", "invest", "investment", "loan", "credit", "finance", "insurance", "payments", "wealth"},
	"healthcare":  {"health", "medical", "clinic", "patients", "care", "doctor", "wellness", "therapy", "hospital", "pharmacy"},
	"retail":      {"shop", "store", "cart", "sale", "products", "collection", "shipping", "order", "fashion", "apparel"},
	"education":   {"learn", "courses", "students", "school", "education", "training", "teachers", "university", "classes", "curriculum"},
	"food":        {"coffee", "restaurant", "menu", "food", "recipes", "kitchen", "bakery", "roasted", "dining", "chef"},
	"travel":      {"travel", "hotel", "flights", "destinations", "booking", "trips", "vacation", "tours", "resort", "adventure"},
	"real_estate": {"homes", "property", "properties", "real", "estate", "rent", "listings", "mortgage", "apartments", "realtor"},
	"marketing":   {"marketing", "brand", "campaigns", "agency", "seo", "growth", "audience", "content", "advertising", "social"},
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the and for are but not you your with this that from have has had was were
		our ours they them their what when where which who whom will would can could should about into over
		more most some such than then there these those very just also only its it's all any each other out
		get got make made like use used using new one two how why now here been being both does did doing
		off own same too under until upon while yours we us my me him her his she he www com http https
		page home site click read learn more contact privacy terms cookies policy copyright rights reserved`) {
		stopWords[w] = struct{}{}
	}
}

// LexiconClassifier is the default TonePass. Tone and industry come from
// keyword lexicons; an optional Classifier refines them.
type LexiconClassifier struct {
	KeywordLimit int
	Refiner      Classifier
	Logger       *slog.Logger
}

// AnalyzeTone implements TonePass.
func (c LexiconClassifier) AnalyzeTone(ctx context.Context, art *crawler.Artifacts) (Voice, error) {
	if art == nil || strings.TrimSpace(art.Text) == "" {
		return Voice{}, ErrNoText
	}
	tokens := Tokenize(art.Text)
	limit := c.KeywordLimit
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	voice := Voice{
		Tone:     classify(tokens, Tones, toneLexicon, brand.DefaultTone),
		Keywords: TopKeywords(tokens, limit),
		Industry: classify(tokens, Industries, industryLexicon, brand.DefaultIndustry),
	}

	if c.Refiner != nil {
		tone, industry, err := c.Refiner.Classify(ctx, excerpt(art.Text, 4000), voice.Keywords)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.Logger), "tone refinement failed; using lexicon result", "tone_refine_failed",
				logging.String(logging.FieldErrorHint, "check [llm] api_key and base_url"),
				logging.String(logging.FieldImpact, "tone and industry come from the keyword lexicon"),
				logging.Error(err),
			)
			return voice, nil
		}
		if slices.Contains(Tones, tone) {
			voice.Tone = tone
		}
		if slices.Contains(Industries, industry) {
			voice.Industry = industry
		}
	}
	return voice, nil
}

// Tokenize normalizes text with NFKC and case folding and splits it into
// letter runs. Apostrophes stay inside words.
func Tokenize(text string) []string {
	normalized := cases.Fold().String(norm.NFKC.String(text))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// TopKeywords ranks non-stop-word tokens by frequency. Ties keep the order of
// first appearance.
func TopKeywords(tokens []string, limit int) []string {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, tok := range tokens {
		tok = strings.Trim(tok, "'")
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, seen := first[tok]; !seen {
			first[tok] = i
		}
		counts[tok]++
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func classify(tokens []string, labels []string, lexicon map[string][]string, fallback string) string {
	present := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		present[strings.Trim(tok, "'")]++
	}
	best, bestScore := fallback, 0
	for _, label := range labels {
		score := 0
		for _, word := range lexicon[label] {
			score += present[word]
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best
}

func excerpt(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
