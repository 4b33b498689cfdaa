package quality

import (
	"strings"
	"unicode"
)

type Decision struct {
	Usable    bool
	Reasons   []string
	WordCount int
}

func CountWords(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(strings.Fields(s))
}

// Score judges whether extracted text is usable as-is or whether the caller
// should fall back to image recognition. Letters are short prose, so the
// signals are deliberately few: emptiness, word count, garbage characters
// from broken encodings, and the scrambled single-character words that a
// damaged PDF text layer produces.
func Score(text string, minWords int) Decision {
	clean := normalize(text)
	wc := CountWords(clean)

	total := float64(len([]rune(clean)))
	if total == 0 {
		return Decision{Usable: false, Reasons: []string{"empty_text"}, WordCount: 0}
	}

	reasons := []string{}
	usable := true

	if wc < minWords {
		usable = false
		reasons = append(reasons, "low_word_count")
	}

	if garbageRatio(clean, total) > 0.01 {
		usable = false
		reasons = append(reasons, "garbage_chars")
	}

	if scrambledRatio(clean) > 0.30 {
		usable = false
		reasons = append(reasons, "scrambled_text")
	}

	return Decision{Usable: usable, Reasons: reasons, WordCount: wc}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		lines[i] = strings.Join(fields, " ")
	}
	s = strings.Join(lines, "\n")

	for strings.Contains(s, "\n\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n\n", "\n\n")
	}

	return strings.TrimSpace(s)
}

func garbageRatio(s string, total float64) float64 {
	n := 0
	for _, r := range s {
		// Unicode replacement char or control chars (excluding newline/tab)
		if r == '�' || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			n++
		}
	}
	return float64(n) / total
}

func scrambledRatio(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	single := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			single++
		}
	}
	return float64(single) / float64(len(words))
}
