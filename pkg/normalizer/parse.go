package normalizer

import (
	"regexp"
	"strings"
)

var (
	listLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.*)$`)
	emphasis = strings.NewReplacer("**", "", "__", "")
)

// Parse extracts the items of a markdown list, numbered or bulleted.
// Lines before the first item are treated as preamble and dropped; other
// non-item lines are joined to the preceding item. It returns nil when the
// text holds no list at all.
func Parse(markdown string) []string {
	var items []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if m := listLine.FindStringSubmatch(line); m != nil {
			if item := clean(m[1]); item != "" {
				items = append(items, item)
			}
			continue
		}
		trimmed := clean(line)
		if trimmed == "" || len(items) == 0 {
			continue
		}
		items[len(items)-1] += " " + trimmed
	}
	return items
}

func clean(s string) string {
	return strings.TrimSpace(emphasis.Replace(s))
}
