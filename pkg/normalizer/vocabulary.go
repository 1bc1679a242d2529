package normalizer

import (
	"regexp"
	"sort"
	"strings"
)

// Vocabulary lists the spoken ordinal tokens that may follow or precede the item keyword.
type Vocabulary struct {
	Ordinals []string `yaml:"ordinals" mapstructure:"ordinals"`
}

// DefaultVocabulary is the English ordinal and cardinal set.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{Ordinals: []string{
		"first", "second", "third", "fourth", "fifth",
		"sixth", "seventh", "eighth", "ninth", "tenth",
		"one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine", "ten",
	}}
}

// pattern returns an alternation of the ordinals, longest first, so "seventh" wins over "seven".
func (v Vocabulary) pattern() string {
	words := make([]string, 0, len(v.Ordinals))
	for _, w := range v.Ordinals {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	if len(words) == 0 {
		return ""
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return strings.Join(words, "|")
}
