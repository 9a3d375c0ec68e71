// Package ingest turns scanned PDFs into per-page images and appends the
// resulting pages to a book through the ledger.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/ledger"
	"github.com/jackzampolin/folio/internal/types"
)

// renderDPI is the resolution pages are rasterized at. 300 DPI keeps
// marginalia legible for the vision models downstream.
const renderDPI = "300"

// Request describes one ingestion run.
type Request struct {
	BookID string
	// PDFPaths are the scan files to ingest, in reading order. When empty,
	// the book's originals directory is scanned and files are ordered by
	// numeric suffix.
	PDFPaths []string
}

// Result reports what an ingestion produced.
type Result struct {
	BookID    string       `json:"book_id"`
	PageCount int          `json:"page_count"`
	Pages     []types.Page `json:"pages"`
}

// Ingester extracts page images and registers pages.
type Ingester struct {
	ledger *ledger.Ledger
	home   *home.Dir
	logger *slog.Logger
}

// New creates an ingester.
func New(l *ledger.Ledger, h *home.Dir, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{ledger: l, home: h, logger: logger}
}

// Ingest renders every page of the request's PDFs into the book's pages
// directory and appends them to the book in order.
func (ing *Ingester) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := ing.home.EnsureBookDirs(req.BookID); err != nil {
		return nil, err
	}

	pdfs := req.PDFPaths
	if len(pdfs) == 0 {
		found, err := findPDFs(ing.home.OriginalsDir(req.BookID))
		if err != nil {
			return nil, err
		}
		pdfs = found
	}
	if len(pdfs) == 0 {
		return nil, fmt.Errorf("no PDFs to ingest for book %s", req.BookID)
	}

	outDir := ing.home.PagesDir(req.BookID)

	// Image refs are relative to the data dir so the store never carries
	// absolute host paths.
	var refs []string
	offset := 0
	for _, pdfPath := range pdfs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		count, err := pageCount(pdfPath)
		if err != nil {
			return nil, err
		}

		if err := renderPages(pdfPath, outDir, offset, count); err != nil {
			return nil, err
		}
		for i := 1; i <= count; i++ {
			refs = append(refs, filepath.Join(req.BookID, "pages", pageFileName(offset+i)))
		}

		ing.logger.Info("rendered pdf", "book_id", req.BookID, "pdf", filepath.Base(pdfPath), "pages", count)
		offset += count
	}

	pages, err := ing.ledger.InsertPages(ctx, req.BookID, refs)
	if err != nil {
		return nil, err
	}

	return &Result{BookID: req.BookID, PageCount: len(pages), Pages: pages}, nil
}

// pageCount reads the PDF's page count via pdfcpu.
func pageCount(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", pdfPath, err)
	}
	return count, nil
}

// renderPages rasterizes pages concurrently with pdftoppm (poppler-utils),
// which renders pages correctly where raw embedded-image extraction does not.
func renderPages(pdfPath, outDir string, offset, count int) error {
	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, count)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= count; page++ {
		sem <- struct{}{} // acquire
		go func(pageInPDF int) {
			defer func() { <-sem }() // release
			err := renderPage(pdfPath, outDir, pageInPDF, offset+pageInPDF)
			results <- result{pageNum: pageInPDF, err: err}
		}(page)
	}

	for i := 0; i < count; i++ {
		r := <-results
		if r.err != nil {
			return fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		}
	}
	return nil
}

// renderPage renders a single page from a PDF using pdftoppm.
func renderPage(pdfPath, outDir string, pageInPDF, outputPageNum int) error {
	tmpDir, err := os.MkdirTemp("", "folio-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", renderDPI,
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read rendered image: %w", err)
	}

	dstPath := filepath.Join(outDir, pageFileName(outputPageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}
	return nil
}

func pageFileName(pageNum int) string {
	return fmt.Sprintf("page_%04d.png", pageNum)
}

// findPDFs lists the PDFs in dir sorted by numeric suffix so multi-part
// scans (book-1.pdf, book-2.pdf, book-10.pdf) ingest in reading order.
func findPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read originals directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return sortPDFsByNumber(paths), nil
}

var numericSuffix = regexp.MustCompile(`(\d+)\.pdf$`)

// sortPDFsByNumber sorts PDF paths by trailing number, falling back to
// lexical order for paths without one.
func sortPDFsByNumber(paths []string) []string {
	sorted := append([]string(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, iok := trailingNumber(sorted[i])
		nj, jok := trailingNumber(sorted[j])
		if iok && jok {
			return ni < nj
		}
		if iok != jok {
			return jok // un-numbered files first
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func trailingNumber(path string) (int, bool) {
	m := numericSuffix.FindStringSubmatch(strings.ToLower(path))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
