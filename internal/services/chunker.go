package services

import (
	"regexp"
	"strings"

	"scan2epub/internal/models"
)

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// ChunkText splits text into chunks of at most maxChars characters for LLM
// processing, preferring paragraph boundaries, then sentence boundaries, and
// only force-splitting when a single sentence exceeds the limit. Chunk order
// follows input order and concatenating the chunks reproduces the input text
// up to separator normalization.
func ChunkText(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" || maxChars <= 0 {
		return nil
	}

	var chunks []string
	var current string

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current = ""
	}

	for _, paragraph := range strings.Split(text, models.ParagraphSep) {
		if current != "" && len(current)+len(models.ParagraphSep)+len(paragraph) > maxChars {
			flush()
		}
		if len(paragraph) > maxChars {
			// The paragraph alone blows the budget; pack its sentences.
			current = packSentences(&chunks, current, paragraph, maxChars)
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current += models.ParagraphSep + paragraph
		}
	}
	flush()
	return chunks
}

// packSentences greedily packs the sentences of one oversized paragraph,
// continuing from the given accumulator and returning the new accumulator.
// A sentence longer than maxChars is split at the character limit.
func packSentences(chunks *[]string, current, paragraph string, maxChars int) string {
	for _, sentence := range splitSentences(paragraph) {
		if current != "" && len(current)+1+len(sentence) > maxChars {
			if trimmed := strings.TrimSpace(current); trimmed != "" {
				*chunks = append(*chunks, trimmed)
			}
			current = ""
		}
		for len(sentence) > maxChars {
			*chunks = append(*chunks, sentence[:maxChars])
			sentence = sentence[maxChars:]
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	return current
}

// splitSentences splits after sentence-ending punctuation followed by
// whitespace. The trailing punctuation stays with its sentence.
func splitSentences(s string) []string {
	marked := sentenceEndRe.ReplaceAllString(s, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
