// Package artifact fetches finished documents from the Document API and
// keeps a local copy per job, so the results page can serve the download and
// the change summary without re-hitting the backend.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"smartdoc/internal/docapi"
	fileutil "smartdoc/internal/file"
	"smartdoc/internal/preview"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DownloadName is the fixed attachment name for the formatted variant.
const DownloadName = "formatted_document.docx"

// Downloader is the slice of the Document API client the cache needs.
type Downloader interface {
	Download(ctx context.Context, jobID, variant string) (io.ReadCloser, error)
}

// Pair holds both variants of a finished job.
type Pair struct {
	Original  []byte
	Formatted []byte
}

// Summary compares the two variants for the results page.
type Summary struct {
	FileName            string `json:"file_name"`
	OriginalHeadings    int    `json:"original_headings"`
	FormattedHeadings   int    `json:"formatted_headings"`
	OriginalParagraphs  int    `json:"original_paragraphs"`
	FormattedParagraphs int    `json:"formatted_paragraphs"`
	Comparable          bool   `json:"comparable"`
}

// Cache downloads and stores job artifacts under dataDir/jobs/<jobID>/.
type Cache struct {
	dataDir string
	client  Downloader
}

// NewCache creates a cache rooted at dataDir.
func NewCache(dataDir string, client Downloader) *Cache {
	return &Cache{dataDir: dataDir, client: client}
}

func (c *Cache) jobDir(jobID string) string {
	return filepath.Join(c.dataDir, "jobs", jobID)
}

// VariantPath returns where a variant is stored on disk.
func (c *Cache) VariantPath(jobID, variant string) string {
	return filepath.Join(c.jobDir(jobID), variant+".bin")
}

// FetchBoth downloads the original and formatted variants concurrently,
// persists each atomically, and returns both bodies. Either both variants
// are fetched or the call fails.
func (c *Cache) FetchBoth(ctx context.Context, jobID string) (Pair, error) {
	var pair Pair
	eg, gctx := errgroup.WithContext(ctx)

	fetch := func(variant string, dest *[]byte) func() error {
		return func() error {
			body, err := c.client.Download(gctx, jobID, variant)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", variant, err)
			}
			defer func() { _ = body.Close() }()
			data, err := io.ReadAll(body)
			if err != nil {
				return fmt.Errorf("read %s: %w", variant, err)
			}
			if err := fileutil.CopyAtomic(c.VariantPath(jobID, variant), bytes.NewReader(data)); err != nil {
				return fmt.Errorf("store %s: %w", variant, err)
			}
			*dest = data
			return nil
		}
	}

	eg.Go(fetch(docapi.VariantOriginal, &pair.Original))
	eg.Go(fetch(docapi.VariantFormatted, &pair.Formatted))
	if err := eg.Wait(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// Summarize extracts both variants and reports structural counts. Jobs whose
// content cannot be extracted (e.g. PDF artifacts) yield a non-comparable
// summary rather than an error.
func (c *Cache) Summarize(jobID, fileName string, pair Pair) Summary {
	summary := Summary{FileName: fileName}

	original, errO := preview.Extract(fileName, pair.Original)
	formatted, errF := preview.Extract(fileName, pair.Formatted)
	if errO != nil || errF != nil {
		log.Debug().Str("job_id", jobID).Str("file", fileName).
			AnErr("original", errO).AnErr("formatted", errF).
			Msg("change summary unavailable")
		return summary
	}
	summary.Comparable = true
	summary.OriginalHeadings = original.Headings()
	summary.FormattedHeadings = formatted.Headings()
	summary.OriginalParagraphs = original.Paragraphs()
	summary.FormattedParagraphs = formatted.Paragraphs()

	if err := fileutil.WriteJSONAtomic(filepath.Join(c.jobDir(jobID), "summary.json"), summary); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("persist summary failed")
	}
	return summary
}
