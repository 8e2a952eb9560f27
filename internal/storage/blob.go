// Package storage uploads local PDFs to a blob container so the remote
// document-analysis service can fetch them by URL. The container is addressed
// by a pre-signed container URL; blob URLs are derived from it, so the
// delegated permissions must include read, write, delete and list.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
)

// BlobStore tracks every blob it uploads so a run can tear down its remote
// footprint afterwards, including on failure paths.
type BlobStore struct {
	baseURL    string // container URL without query
	query      string // pre-signed query string
	cfg        config.StorageSettings
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
	quiet      bool

	uploaded []string
}

func NewBlobStore(cfg config.StorageSettings, logger zerolog.Logger) (*BlobStore, error) {
	u, err := url.Parse(cfg.ContainerURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "invalid container URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apperr.New(apperr.KindStorage, "container URL must be absolute")
	}
	query := u.RawQuery
	u.RawQuery = ""
	return &BlobStore{
		baseURL: strings.TrimRight(u.String(), "/"),
		query:   query,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		log: logger.With().Str("component", "storage").Logger(),
		now: time.Now,
	}, nil
}

// IsURL reports whether path is already remotely fetchable and needs no
// upload.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Upload sends a local file to the container and returns the pre-signed blob
// URL the analysis service can fetch it from.
func (b *BlobStore) Upload(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "file not found", err)
	}
	if info.Size() > b.cfg.MaxFileSizeBytes {
		return "", apperr.Newf(apperr.KindStorage, "file too large: %.1fMB exceeds limit of %.1fMB",
			float64(info.Size())/(1024*1024), float64(b.cfg.MaxFileSizeBytes)/(1024*1024))
	}

	blobName := b.blobName(localPath)
	f, err := os.Open(localPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "open file", err)
	}
	defer f.Close()

	var body io.Reader = f
	if !b.quiet {
		bar := progressbar.DefaultBytes(info.Size(), "uploading")
		pr := progressbar.NewReader(f, bar)
		body = &pr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.blobURL(blobName), body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "create upload request", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "upload file", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Newf(apperr.KindStorage, "upload rejected: status=%d", resp.StatusCode)
	}

	b.uploaded = append(b.uploaded, blobName)
	b.log.Info().Str("blob", blobName).Int64("bytes", info.Size()).Msg("upload complete")
	return b.blobURL(blobName), nil
}

// Delete removes one blob. Failures are reported, not fatal; teardown keeps
// going.
func (b *BlobStore) Delete(ctx context.Context, blobName string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.blobURL(blobName), nil)
	if err != nil {
		b.log.Warn().Err(err).Str("blob", blobName).Msg("cannot create delete request")
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.log.Warn().Err(err).Str("blob", blobName).Msg("delete failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNotFound {
		b.log.Warn().Int("status", resp.StatusCode).Str("blob", blobName).Msg("delete rejected")
		return false
	}
	if b.cfg.LogCleanup {
		b.log.Info().Str("blob", blobName).Msg("deleted blob")
	}
	for i, name := range b.uploaded {
		if name == blobName {
			b.uploaded = append(b.uploaded[:i], b.uploaded[i+1:]...)
			break
		}
	}
	return true
}

// CleanupAll deletes every blob uploaded during this session and reports how
// many deletions succeeded and failed.
func (b *BlobStore) CleanupAll(ctx context.Context) (deleted, failed int) {
	if len(b.uploaded) == 0 {
		return 0, 0
	}
	b.log.Info().Int("blobs", len(b.uploaded)).Msg("cleaning up uploaded blobs")
	for _, name := range append([]string(nil), b.uploaded...) {
		if b.Delete(ctx, name) {
			deleted++
		} else {
			failed++
		}
	}
	if b.cfg.LogCleanup {
		b.log.Info().Int("deleted", deleted).Int("failed", failed).Msg("cleanup completed")
	}
	return deleted, failed
}

// Preflight lists one blob to verify the container URL and its delegated
// permissions before a run commits to an upload.
func (b *BlobStore) Preflight(ctx context.Context) error {
	listURL := b.baseURL + "?" + b.query
	if b.query != "" {
		listURL += "&"
	}
	listURL += "restype=container&comp=list&maxresults=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "create container probe", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "storage container unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Newf(apperr.KindStorage, "storage container rejected probe: status=%d", resp.StatusCode)
	}
	return nil
}

// SetQuiet disables the upload progress bar, for non-interactive runs and
// tests.
func (b *BlobStore) SetQuiet(quiet bool) {
	b.quiet = quiet
}

// Uploaded returns the names of blobs uploaded and not yet deleted.
func (b *BlobStore) Uploaded() []string {
	return append([]string(nil), b.uploaded...)
}

func (b *BlobStore) blobURL(blobName string) string {
	u := b.baseURL + "/" + url.PathEscape(blobName)
	if b.query != "" {
		u += "?" + b.query
	}
	return u
}

// blobName builds a unique, service-safe name from the upload time and the
// sanitized source file name.
func (b *BlobStore) blobName(localPath string) string {
	timestamp := b.now().UTC().Format("20060102_150405")
	original := filepath.Base(localPath)
	var safe strings.Builder
	for _, r := range original {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			safe.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			safe.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s_%s", timestamp, safe.String())
}
