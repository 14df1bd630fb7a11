package helpers

import (
	"strings"
	"unicode/utf8"
)

// Finds the valid name that a misspelled name was probably meant to be. Only
// a single missing, extra, or swapped-out character and differences in case
// are recognized. Short names are never suggested since nearly anything is
// one edit away from them.
type TypoDetector struct {
	oneCharTypos map[string]string
	folded       map[string]string
}

func MakeTypoDetector(valid []string) TypoDetector {
	detector := TypoDetector{
		oneCharTypos: make(map[string]string),
		folded:       make(map[string]string),
	}

	for _, correct := range valid {
		if len(correct) <= 3 {
			continue
		}
		detector.folded[strings.ToLower(correct)] = correct

		// Add all combinations of each valid word with one character missing
		for i, ch := range correct {
			detector.oneCharTypos[correct[:i]+correct[i+utf8.RuneLen(ch):]] = correct
		}
	}

	return detector
}

func (detector TypoDetector) MaybeCorrectTypo(typo string) (string, bool) {
	if corrected, ok := detector.folded[strings.ToLower(typo)]; ok && corrected != typo {
		return corrected, true
	}

	// Check for a single deleted character
	if corrected, ok := detector.oneCharTypos[typo]; ok {
		return corrected, true
	}

	// Check for a single extra or replaced character
	for i, ch := range typo {
		shorter := typo[:i] + typo[i+utf8.RuneLen(ch):]
		if corrected, ok := detector.folded[shorter]; ok && corrected == shorter {
			return corrected, true
		}
		if corrected, ok := detector.oneCharTypos[shorter]; ok && corrected != typo {
			return corrected, true
		}
	}

	return "", false
}
