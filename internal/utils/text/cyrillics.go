package text

import (
	"strings"
	"unicode"
)

// HasCyrillics checks if the given string contains any Cyrillic characters
func HasCyrillics(content string) bool {
	for _, r := range content {
		if isCyrillic(r) {
			return true
		}
	}
	return false
}

func isCyrillic(r rune) bool {
	return (r >= 0x0400 && r <= 0x04FF) || (r >= 0x0500 && r <= 0x052F)
}

func isLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// lowercase Cyrillic letters that render like Latin ones
var confusables = strings.NewReplacer(
	"а", "a",
	"с", "c",
	"ԁ", "d",
	"е", "e",
	"һ", "h",
	"і", "i",
	"ј", "j",
	"м", "m",
	"о", "o",
	"р", "p",
	"ѕ", "s",
	"х", "x",
	"у", "y",
	"ԝ", "w",
)

// FoldConfusables replaces Cyrillic lookalikes with their Latin twins inside words that
// mix both scripts, so "һttрѕ://х.іо" reads "https://x.io". Words written in one script
// are left alone. Input is expected to be case folded already.
func FoldConfusables(content string) string {
	if !HasCyrillics(content) {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	start := -1
	for i, r := range content {
		if !unicode.IsSpace(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(foldWord(content[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(foldWord(content[start:]))
	}
	return b.String()
}

func foldWord(word string) string {
	var latin, cyrillic bool
	for _, r := range word {
		switch {
		case isLatin(r):
			latin = true
		case isCyrillic(r):
			cyrillic = true
		}
		if latin && cyrillic {
			return confusables.Replace(word)
		}
	}
	return word
}
