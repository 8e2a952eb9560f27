package epub

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"scan2epub/internal/apperr"
	"scan2epub/internal/models"
)

// Write packages metadata and chapters into a new EPUB file at outPath. When
// no chapters are supplied a single placeholder chapter is written so the
// container stays readable; callers that consider an empty book an error must
// check before calling.
func Write(outPath string, meta models.Metadata, chapters []models.Chapter) error {
	if len(chapters) == 0 {
		chapters = []models.Chapter{{
			FileName: "placeholder.xhtml",
			Title:    "Placeholder Chapter",
			HTML:     PlaceholderChapterHTML,
		}}
	}

	identifier := strings.TrimSpace(meta.Identifier)
	if identifier == "" || identifier == "unknown" {
		identifier = "urn:uuid:" + uuid.NewString()
	}

	out, err := os.Create(outPath)
	if err != nil {
		return apperr.Wrap(apperr.KindEPUB, fmt.Sprintf("create %s", outPath), err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	// The mimetype entry must come first and be stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return apperr.Wrap(apperr.KindEPUB, "write mimetype", err)
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		return apperr.Wrap(apperr.KindEPUB, "write mimetype", err)
	}

	entries := map[string]string{
		"META-INF/container.xml": containerDocument,
		"OEBPS/content.opf":      packageDocument(identifier, meta, chapters),
		"OEBPS/nav.xhtml":        navDocument(meta, chapters),
		"OEBPS/toc.ncx":          ncxDocument(identifier, meta, chapters),
	}
	for _, ch := range chapters {
		entries["OEBPS/"+ch.FileName] = ch.HTML
	}

	// Deterministic entry order keeps output diffs readable in debug runs.
	order := []string{"META-INF/container.xml", "OEBPS/content.opf", "OEBPS/nav.xhtml", "OEBPS/toc.ncx"}
	for _, ch := range chapters {
		order = append(order, "OEBPS/"+ch.FileName)
	}
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			return apperr.Wrap(apperr.KindEPUB, fmt.Sprintf("create entry %s", name), err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			return apperr.Wrap(apperr.KindEPUB, fmt.Sprintf("write entry %s", name), err)
		}
	}

	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.KindEPUB, "finalize container", err)
	}
	return nil
}

const containerDocument = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func packageDocument(identifier string, meta models.Metadata, chapters []models.Chapter) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:identifier id=\"bookid\">%s</dc:identifier>\n", escapeText(identifier))
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", escapeText(meta.Title))
	fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", escapeText(meta.Author))
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", escapeText(meta.Language))
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString("  </metadata>\n  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	for i, ch := range chapters {
		fmt.Fprintf(&sb, "    <item id=\"chap%d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, escapeText(ch.FileName))
	}
	sb.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	sb.WriteString("    <itemref idref=\"nav\"/>\n")
	for i := range chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"chap%d\"/>\n", i+1)
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

func navDocument(meta models.Metadata, chapters []models.Chapter) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>`)
	sb.WriteString(escapeText(meta.Title))
	sb.WriteString(`</title></head>
<body>
<nav epub:type="toc" id="toc">
<ol>
`)
	for i, ch := range chapters {
		title := ch.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		fmt.Fprintf(&sb, "<li><a href=\"%s\">%s</a></li>\n", escapeText(ch.FileName), escapeText(title))
	}
	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return sb.String()
}

func ncxDocument(identifier string, meta models.Metadata, chapters []models.Chapter) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
`)
	fmt.Fprintf(&sb, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", escapeText(identifier))
	sb.WriteString("  </head>\n")
	fmt.Fprintf(&sb, "  <docTitle><text>%s</text></docTitle>\n", escapeText(meta.Title))
	sb.WriteString("  <navMap>\n")
	for i, ch := range chapters {
		title := ch.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		fmt.Fprintf(&sb, "    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1)
		fmt.Fprintf(&sb, "      <navLabel><text>%s</text></navLabel>\n", escapeText(title))
		fmt.Fprintf(&sb, "      <content src=\"%s\"/>\n", escapeText(ch.FileName))
		sb.WriteString("    </navPoint>\n")
	}
	sb.WriteString("  </navMap>\n</ncx>\n")
	return sb.String()
}
