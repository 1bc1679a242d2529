package normalizer

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/minutes/internal/logging"
)

var (
	sentenceEnd  = regexp.MustCompile(`([.!?]+)\s+`)
	leadingDigit = regexp.MustCompile(`^\d+[.)]`)
	digitMarker  = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Normalizer converts transcripts into numbered lists.
// It is safe for concurrent use; compiled keyword patterns are cached.
type Normalizer struct {
	vocab    Vocabulary
	ordinals string
	logger   *slog.Logger
	cache    sync.Map // keyword -> *keywordRules
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithVocabulary replaces the ordinal vocabulary.
func WithVocabulary(v Vocabulary) Option {
	return func(n *Normalizer) {
		n.vocab = v
	}
}

// WithLogger sets the logger used to report recovered failures.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// New creates a Normalizer with the English vocabulary by default.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		vocab:  DefaultVocabulary(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.ordinals = n.vocab.pattern()
	return n
}

var std = New()

// Normalize runs the default English normalizer.
func Normalize(text, keyword string) string {
	return std.Normalize(text, keyword)
}

// Items runs the default English normalizer and returns the cleaned items.
func Items(text, keyword string) []string {
	return std.Items(text, keyword)
}

// Normalize returns the transcript as "<n>. <item>\n" lines.
func (n *Normalizer) Normalize(text, keyword string) string {
	return Format(n.Items(text, keyword))
}

// Items returns the cleaned items in spoken order. It always returns at least
// one element: when nothing survives the heuristic, the input itself.
func (n *Normalizer) Items(text, keyword string) (items []string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("normalizer recovered", "panic", fmt.Sprint(r), "keyword", keyword)
			items = []string{text}
		}
	}()

	rules := n.rulesFor(keyword)
	for _, sentence := range Sentences(text) {
		item := strings.TrimSpace(sentence)
		if item == "" {
			continue
		}
		if rules.matches(item) {
			item = rules.strip(item)
		}
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return []string{text}
	}
	return items
}

// Sentences splits text after every run of '.', '!' or '?' that is followed by whitespace.
// The punctuation stays with its sentence.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, text[start:m[3]])
		start = m[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// Format renders items as a numbered list starting at 1.
func Format(items []string) string {
	var b strings.Builder
	for i, item := range items {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(item)
		b.WriteByte('\n')
	}
	return b.String()
}

type keywordRules struct {
	contains *regexp.Regexp
	strip    func(string) string
}

func (r *keywordRules) matches(sentence string) bool {
	if leadingDigit.MatchString(sentence) {
		return true
	}
	return r.contains != nil && r.contains.MatchString(sentence)
}

func (n *Normalizer) rulesFor(keyword string) *keywordRules {
	keyword = strings.TrimSpace(keyword)
	if cached, ok := n.cache.Load(keyword); ok {
		return cached.(*keywordRules)
	}
	rules := n.compile(keyword)
	actual, _ := n.cache.LoadOrStore(keyword, rules)
	return actual.(*keywordRules)
}

// compile builds the keyword patterns. The keyword is matched as a stem so
// "question" also matches "questions", and boundaries are Unicode letters
// rather than \b, which only knows ASCII.
func (n *Normalizer) compile(keyword string) *keywordRules {
	var replacers []func(string) string

	if keyword != "" {
		kw := regexp.QuoteMeta(keyword) + `\pL*`
		numbers := `\d+`
		if n.ordinals != "" {
			numbers = `(?:` + n.ordinals + `|\d+)`
		}
		tail := `(?:[\s.:,;\-]+|$)`

		contains := regexp.MustCompile(`(?i)(?:^|[^\pL\pN])` + kw)

		// "question two", anywhere in the sentence.
		inline := regexp.MustCompile(`(?i)(^|[^\pL\pN])` + kw + `\s+` + numbers + tail)
		// "second question", at the start.
		prefixed := regexp.MustCompile(`(?i)^` + numbers + `\s+` + kw + tail)
		// "Question: ...", at the start.
		bare := regexp.MustCompile(`(?i)^` + kw + `\s*[.:;\-]+\s*`)

		replacers = append(replacers,
			func(s string) string { return inline.ReplaceAllString(s, "${1}") },
			func(s string) string { return prefixed.ReplaceAllString(s, "") },
			func(s string) string { return bare.ReplaceAllString(s, "") },
		)
		rules := &keywordRules{contains: contains}
		rules.strip = stripWith(replacers)
		return rules
	}
	return &keywordRules{strip: stripWith(nil)}
}

func stripWith(replacers []func(string) string) func(string) string {
	return func(s string) string {
		for _, r := range replacers {
			s = strings.TrimSpace(r(s))
		}
		s = digitMarker.ReplaceAllString(s, "")
		return strings.TrimSpace(s)
	}
}
