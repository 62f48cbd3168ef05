// Package relevance ranks memories against the current query so a bounded,
// on-topic subset can be injected into the prompt.
package relevance

import (
	"regexp"
	"strings"
)

var latinWordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// Keywords extracts the keyword set of a text. CJK runs contribute every
// single character plus every adjacent bigram; Latin segments contribute
// lowercased words longer than one character.
func Keywords(text string) map[string]struct{} {
	set := map[string]struct{}{}

	var cjkRun []rune
	flush := func() {
		for i, r := range cjkRun {
			set[string(r)] = struct{}{}
			if i+1 < len(cjkRun) {
				set[string(cjkRun[i:i+2])] = struct{}{}
			}
		}
		cjkRun = cjkRun[:0]
	}

	var latin strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjkRun = append(cjkRun, r)
			continue
		}
		flush()
		latin.WriteRune(r)
	}
	flush()

	for _, word := range latinWordRe.FindAllString(strings.ToLower(latin.String()), -1) {
		if len(word) > 1 {
			set[word] = struct{}{}
		}
	}
	return set
}

// Jaccard is |A∩B| / |A∪B|; zero when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
