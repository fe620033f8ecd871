package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ReadError means the source document could not be read. It is fatal for that invoice only.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Load reads a document from disk and derives its media kind, class and content hash.
// PDFs are preflighted with pdfcpu: one that parses to no pages or to more than
// constants.MaxPDFPages is a ReadError. A PDF pdfcpu cannot parse is still handed to the model.
func Load(path string, logger *slog.Logger) (*entity.InvoiceDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ext := filepath.Ext(path)
	if !constants.IsAllowedExt(ext) {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: %q", common.ErrUnsupportedMedia, ext)}
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if st.IsDir() {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("file is empty")}
	}

	sum := sha256.Sum256(data)
	doc := &entity.InvoiceDocument{
		Path:        path,
		Data:        data,
		MediaType:   constants.MediaTypeForExt(ext),
		Media:       constants.MapExtToFormat(ext),
		Class:       Classify(path),
		ContentHash: hex.EncodeToString(sum[:]),
	}

	if doc.Media == constants.PDF {
		pages, err := api.PageCount(bytes.NewReader(data), nil)
		switch {
		case err != nil:
			logger.Warn("document.pdf.page_count_failed", "path", path, "error", err)
		case pages == 0:
			return nil, &ReadError{Path: path, Err: fmt.Errorf("pdf has no pages")}
		case pages > constants.MaxPDFPages:
			return nil, &ReadError{Path: path, Err: fmt.Errorf("pdf has %d pages, limit is %d", pages, constants.MaxPDFPages)}
		default:
			doc.Pages = pages
		}
	}

	logger.Debug("document.load.ok",
		"path", path,
		"bytes", len(data),
		"media_type", doc.MediaType,
		"class", doc.Class,
		"pages", doc.Pages,
	)
	return doc, nil
}
