package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"

	"scan2epub/internal/apperr"
	"scan2epub/internal/models"
)

// Read extracts the content items and metadata of an EPUB file. Chapters are
// returned in spine order; XHTML manifest items missing from the spine are
// appended afterwards so nothing readable is silently dropped.
func Read(epubPath string) (*models.Document, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEPUB, fmt.Sprintf("open %s", epubPath), err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := resolveOPFPath(files)
	if err != nil {
		return nil, err
	}

	var pkg packageXML
	if err := unmarshalZipFile(files, opfPath, &pkg); err != nil {
		return nil, apperr.Wrap(apperr.KindEPUB, "parse package document", err)
	}

	opfDir := path.Dir(opfPath)
	items := orderedContentItems(pkg)

	doc := &models.Document{Metadata: metadataFrom(pkg.Metadata)}
	for _, item := range items {
		href := item.Href
		if opfDir != "." {
			href = path.Join(opfDir, href)
		}
		f, ok := files[href]
		if !ok {
			// Manifest entries sometimes point at files the container never
			// shipped; skip rather than fail the whole book.
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindEPUB, fmt.Sprintf("read chapter %s", href), err)
		}
		doc.Items = append(doc.Items, models.ContentItem{
			ID:           item.ID,
			FileName:     path.Base(item.Href),
			Title:        "",
			PlainText:    ExtractText(string(raw)),
			OriginalHTML: string(raw),
		})
	}
	return doc, nil
}

func resolveOPFPath(files map[string]*zip.File) (string, error) {
	var container containerXML
	if err := unmarshalZipFile(files, "META-INF/container.xml", &container); err != nil {
		return "", apperr.Wrap(apperr.KindEPUB, "parse container.xml", err)
	}
	for _, rf := range container.RootFiles {
		if rf.MediaType == "application/oebps-package+xml" || strings.HasSuffix(rf.FullPath, ".opf") {
			return rf.FullPath, nil
		}
	}
	return "", apperr.New(apperr.KindEPUB, "container.xml names no package document")
}

// orderedContentItems returns the XHTML manifest items in spine order, then
// any XHTML items the spine does not reference.
func orderedContentItems(pkg packageXML) []opfItem {
	byID := make(map[string]opfItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		byID[item.ID] = item
	}

	isDocument := func(item opfItem) bool {
		return item.MediaType == "application/xhtml+xml" || item.MediaType == "text/html"
	}

	var out []opfItem
	seen := make(map[string]bool)
	for _, ref := range pkg.Spine.ItemRefs {
		if item, ok := byID[ref.IDRef]; ok && isDocument(item) {
			out = append(out, item)
			seen[item.ID] = true
		}
	}
	for _, item := range pkg.Manifest.Items {
		if isDocument(item) && !seen[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

func metadataFrom(m opfMetadata) models.Metadata {
	first := func(vals []string, fallback string) string {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return fallback
	}
	return models.Metadata{
		Title:      first(m.Titles, "Unknown"),
		Author:     first(m.Creators, "Unknown"),
		Language:   first(m.Languages, "en"),
		Identifier: first(m.Identifiers, "unknown"),
	}
}

func unmarshalZipFile(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("missing %s", name)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return err
	}
	return xml.Unmarshal(raw, v)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// blockTags are elements that end a paragraph when extracting plain text.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "section": true, "article": true,
}

// ExtractText converts an XHTML chapter into plain text with blank-line
// paragraph separators, the form the chunker and batcher expect.
func ExtractText(htmlContent string) string {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// Malformed chapters degrade to a crude tag strip instead of failing
		// extraction for the whole book.
		return strings.TrimSpace(stripTags(htmlContent))
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteString(models.ParagraphSep)
		}
	}
	walk(root)

	return normalizeParagraphs(sb.String())
}

func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// normalizeParagraphs trims each paragraph and collapses runs of blank lines
// into single paragraph separators.
func normalizeParagraphs(s string) string {
	var paras []string
	for _, p := range strings.Split(s, models.ParagraphSep) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, models.ParagraphSep)
}
