package models

import (
	"strings"
	"time"
)

// ParagraphSep separates paragraphs in flat chapter text. Chunking, batching,
// and HTML reconstruction all agree on this separator.
const ParagraphSep = "\n\n"

// Metadata holds the Dublin Core fields carried through the pipeline.
type Metadata struct {
	Title      string
	Author     string
	Language   string
	Identifier string
}

// ContentItem is one chapter/file unit extracted from an EPUB container.
type ContentItem struct {
	ID           string
	FileName     string
	Title        string
	PlainText    string
	OriginalHTML string
}

// IsNavigation reports whether the item is a navigation/TOC artifact that
// transformation stages must skip.
func (c ContentItem) IsNavigation() bool {
	switch c.FileName {
	case "nav.xhtml", "toc.ncx", "content.opf":
		return true
	}
	return strings.Contains(strings.ToLower(c.FileName), "nav")
}

// IsEmpty reports whether the item has no transformable text.
func (c ContentItem) IsEmpty() bool {
	return strings.TrimSpace(c.PlainText) == ""
}

// Document is an ordered set of chapters plus metadata. Stages never mutate a
// Document in place; each transformation produces a new one.
type Document struct {
	Metadata Metadata
	Items    []ContentItem
}

// Chapter is a transformed content item ready to be written to an output
// container.
type Chapter struct {
	FileName string
	Title    string
	HTML     string
}

// RunStatus is the terminal state of a pipeline invocation.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one row of the run ledger.
type RunRecord struct {
	ID              string
	Command         string
	Input           string
	Output          string
	Status          RunStatus
	Error           string
	DegradedChunks  int
	DegradedBatches int
	StartedAt       time.Time
	FinishedAt      time.Time
}
