package epub

import (
	"regexp"
	"strings"
)

var (
	reExcessiveBreaks = regexp.MustCompile(`\n\s*\n\s*\n`)
	reHyphenatedWords = regexp.MustCompile(`\w+-\s*\n\s*\w+`)
	reSingleLineParas = regexp.MustCompile(`\n\s*\S[^\n]*\n\s*\n`)
	rePageNumbers     = regexp.MustCompile(`\n\s*\d+\s*\n`)
)

// AnalyzeArtifacts computes OCR-artifact heuristics on raw extracted text.
// The counts are diagnostic only; no control flow depends on them.
func AnalyzeArtifacts(text string) map[string]int {
	shortLines := 0
	for _, line := range strings.Split(text, "\n") {
		if n := len(strings.TrimSpace(line)); n > 0 && n < 30 {
			shortLines++
		}
	}
	return map[string]int{
		"excessive_line_breaks":  len(reExcessiveBreaks.FindAllString(text, -1)),
		"hyphenated_words":       len(reHyphenatedWords.FindAllString(text, -1)),
		"single_line_paragraphs": len(reSingleLineParas.FindAllString(text, -1)),
		"page_numbers":           len(rePageNumbers.FindAllString(text, -1)),
		"short_lines":            shortLines,
	}
}

// TotalArtifacts sums all artifact counters.
func TotalArtifacts(counts map[string]int) int {
	total := 0
	for _, v := range counts {
		total += v
	}
	return total
}
