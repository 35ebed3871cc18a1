package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Tokenize lowercases and whitespace-splits text, trimming punctuation around each token.
// Tokens are returned once each, in order of first appearance.
func Tokenize(text string, stopwords map[string]struct{}) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		tok := strings.TrimFunc(f, isPunct)
		if tok == "" {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	return tokens
}

// Marks are kept: Devanagari vowel signs are combining marks.
func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
}

// BaseLanguage reduces a locale tag such as "hi-IN" to its base language code.
// Unparseable or empty tags fall back to English.
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "en"
	}

	t, err := language.Parse(tag)
	if err != nil {
		return "en"
	}

	base, _ := t.Base()
	return base.String()
}

// Preprocess removes the configured filler words for the transcript language
// and collapses whitespace.
func (c *Config) Preprocess(transcript, lang string) string {
	fillers := c.Fillers[BaseLanguage(lang)]
	if len(fillers) == 0 {
		fillers = c.Fillers["en"]
	}

	words := strings.Fields(transcript)
	if len(fillers) == 0 {
		return strings.Join(words, " ")
	}

	phrases := make([][]string, 0, len(fillers))
	for _, f := range fillers {
		phrases = append(phrases, strings.Fields(f))
	}

	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		if n := matchPhrase(words[i:], phrases); n > 0 {
			i += n
			continue
		}
		out = append(out, words[i])
		i++
	}

	return strings.Join(out, " ")
}

// matchPhrase returns the length of the filler phrase starting at words[0], or 0.
func matchPhrase(words []string, phrases [][]string) int {
	for _, phrase := range phrases {
		if len(phrase) == 0 || len(phrase) > len(words) {
			continue
		}
		ok := true
		for j, p := range phrase {
			if strings.ToLower(strings.TrimFunc(words[j], isPunct)) != p {
				ok = false
				break
			}
		}
		if ok {
			return len(phrase)
		}
	}
	return 0
}
