package epub

import (
	"strings"

	"scan2epub/internal/models"
)

// headingMaxRunes is the length below which a paragraph with no trailing
// period is treated as a heading. Kept at 100 for output compatibility with
// earlier pipeline stages that relied on visually matching chapters.
const headingMaxRunes = 100

// EmptyChapterHTML is the placeholder document used for chapters that end up
// with no text.
const EmptyChapterHTML = `<?xml version='1.0' encoding='utf-8'?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Empty Chapter</title></head>
<body><p>This chapter appears to be empty.</p></body>
</html>`

// PlaceholderChapterHTML is the last-resort chapter written when a processed
// book has no readable content at all.
const PlaceholderChapterHTML = `<?xml version='1.0' encoding='utf-8'?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Placeholder</title></head>
<body><p>This EPUB was processed but no readable content was found.</p></body>
</html>`

// Reconstruct converts flat cleaned/translated text back into a minimal
// paragraph/heading XHTML document. Short paragraphs without a trailing
// period become headings; everything else becomes a body paragraph.
func Reconstruct(flatText string) string {
	if strings.TrimSpace(flatText) == "" {
		return EmptyChapterHTML
	}

	var paragraphs []string
	for _, p := range strings.Split(flatText, models.ParagraphSep) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		paragraphs = []string{strings.TrimSpace(flatText)}
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version='1.0' encoding='utf-8'?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter</title></head>
<body>
`)
	for _, p := range paragraphs {
		if isHeading(p) {
			sb.WriteString("<h2>")
			sb.WriteString(escapeText(p))
			sb.WriteString("</h2>\n")
		} else {
			sb.WriteString("<p>")
			sb.WriteString(escapeText(p))
			sb.WriteString("</p>\n")
		}
	}
	sb.WriteString("</body>\n</html>")
	return sb.String()
}

func isHeading(paragraph string) bool {
	return len([]rune(paragraph)) < headingMaxRunes && !strings.HasSuffix(paragraph, ".")
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
