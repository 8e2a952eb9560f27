package services

import (
	"os"

	"github.com/ledongthuc/pdf"

	"scan2epub/internal/apperr"
)

// PDFInfo describes a local PDF about to be uploaded for analysis.
type PDFInfo struct {
	Path      string
	SizeBytes int64
	Pages     int
}

// InspectPDF opens a local PDF and reports its size and page count. Catching
// a corrupt or empty file here is much cheaper than after upload and a full
// remote analysis.
func InspectPDF(path string) (*PDFInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "input file not found", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "input is not a readable PDF", err)
	}
	pages := r.NumPage()
	f.Close()

	if pages == 0 {
		return nil, apperr.New(apperr.KindConfig, "pdf has no pages")
	}
	return &PDFInfo{
		Path:      path,
		SizeBytes: info.Size(),
		Pages:     pages,
	}, nil
}
