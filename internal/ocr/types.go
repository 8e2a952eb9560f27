package ocr

import (
	"context"
	"strings"
)

// Analyzer is the document-analysis contract the pipeline consumes: submit a
// document by URL, poll the resulting operation, and flatten the result into
// plain text.
type Analyzer interface {
	// Submit starts an analysis of the document at url and returns the
	// operation ID to poll.
	Submit(ctx context.Context, url string) (string, error)

	// Wait polls the operation until it reaches a terminal status or the
	// configured attempt budget runs out.
	Wait(ctx context.Context, operationID string) (*AnalyzeResult, error)

	// Preflight verifies endpoint and credentials with a cheap request.
	Preflight(ctx context.Context) error
}

// Operation statuses reported by the analysis service.
const (
	StatusNotStarted = "NotStarted"
	StatusRunning    = "Running"
	StatusSucceeded  = "Succeeded"
	StatusFailed     = "Failed"
)

// AnalyzeResult is the payload of a succeeded operation.
type AnalyzeResult struct {
	Contents []ContentBlock `json:"contents"`
}

// ContentBlock is one unit of recognized content. Only the markdown field
// matters for text extraction; blocks without it are skipped.
type ContentBlock struct {
	Kind     string `json:"kind,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type operationResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result *AnalyzeResult  `json:"result,omitempty"`
	Error  *operationError `json:"error,omitempty"`
}

type operationError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *operationError) String() string {
	if e == nil {
		return "unknown error"
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ExtractText flattens a result into plain text by joining the markdown of
// every block with a blank line.
func ExtractText(result *AnalyzeResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, block := range result.Contents {
		if block.Markdown != "" {
			parts = append(parts, block.Markdown)
		}
	}
	return strings.Join(parts, "\n\n")
}
