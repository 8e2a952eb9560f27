package services

import (
	"strings"

	"scan2epub/internal/models"
)

// lineGroupThreshold bounds the accumulated length when grouping single lines
// into paragraphs for content without blank-line separation.
const lineGroupThreshold = 2000

// SplitParagraphs splits chapter text into paragraphs. Blank-line separation
// is the primary rule; single-line content falls back to grouping consecutive
// non-blank lines up to a length threshold.
func SplitParagraphs(text string) []string {
	if text == "" {
		return nil
	}

	var parts []string
	for _, p := range strings.Split(text, models.ParagraphSep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return parts
	}

	// No blank-line structure at all; group lines instead.
	var out []string
	var buf []string
	curLen := 0
	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(buf, " ")))
			buf = buf[:0]
			curLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if curLen+len(line) > lineGroupThreshold {
			flush()
		}
		buf = append(buf, line)
		curLen += len(line) + 1
	}
	flush()

	parts = out[:0]
	for _, p := range out {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// BatchParagraphs packs paragraphs into ordered batches, honoring both a
// maximum paragraph count and a maximum total character budget per batch. A
// paragraph is never split across batches; an oversized paragraph travels in
// a batch of its own.
func BatchParagraphs(paragraphs []string, maxCount, maxChars int) [][]string {
	var batches [][]string
	var cur []string
	curChars := 0

	for _, p := range paragraphs {
		if len(cur) > 0 && (len(cur)+1 > maxCount || curChars+len(p) > maxChars) {
			batches = append(batches, cur)
			cur = nil
			curChars = 0
		}
		cur = append(cur, p)
		curChars += len(p)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
