// Package preflight rejects statement files locally before they are
// uploaded: unsupported types, oversized or empty files, and PDFs that cannot
// be opened.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxBytes matches the upload limit of the backend.
const DefaultMaxBytes = 20 << 20

var (
	ErrEmpty       = errors.New("file is empty")
	ErrTooLarge    = errors.New("file exceeds upload limit")
	ErrUnsupported = errors.New("unsupported file type")
	ErrBrokenPDF   = errors.New("pdf cannot be read")
)

// Kind is the broad class of an accepted file.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

var accepted = map[string]Kind{
	"application/pdf": KindPDF,
	"image/png":       KindImage,
	"image/jpeg":      KindImage,
	"image/tiff":      KindImage,
	"image/webp":      KindImage,
}

// FileInfo describes a file that passed the checks.
type FileInfo struct {
	Path  string
	Name  string
	Size  int64
	MIME  string
	Kind  Kind
	Pages int
}

// Error is a rejected file. It carries a message fit for the user.
type Error struct {
	Err error
	Msg string
}

func (e *Error) Error() string       { return e.Err.Error() + ": " + e.Msg }
func (e *Error) Unwrap() error       { return e.Err }
func (e *Error) UserMessage() string { return e.Msg }

func reject(err error, format string, args ...any) *Error {
	return &Error{Err: err, Msg: fmt.Sprintf(format, args...)}
}

var pdfcpuOnce sync.Once

// Check inspects the file at path. maxBytes <= 0 uses DefaultMaxBytes.
func Check(path string, maxBytes int64) (FileInfo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return FileInfo{}, reject(ErrUnsupported, "%s is a directory.", filepath.Base(path))
	}
	info := FileInfo{Path: path, Name: filepath.Base(path), Size: st.Size()}
	if info.Size == 0 {
		return info, reject(ErrEmpty, "%s is empty.", info.Name)
	}
	if info.Size > maxBytes {
		return info, reject(ErrTooLarge, "%s is %s; the limit is %s.", info.Name, humanBytes(info.Size), humanBytes(maxBytes))
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return info, fmt.Errorf("detect type of %s: %w", path, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if kind, ok := accepted[m.String()]; ok {
			info.MIME, info.Kind = m.String(), kind
			break
		}
	}
	if info.Kind == "" {
		return info, reject(ErrUnsupported, "%s is %s. Upload a PDF or an image (PNG, JPEG, TIFF, WebP).", info.Name, mt.String())
	}

	if info.Kind == KindImage {
		info.Pages = 1
		return info, nil
	}
	pages, err := checkPDF(path, info.Size)
	if err != nil {
		return info, reject(fmt.Errorf("%w: %v", ErrBrokenPDF, err), "%s could not be read as a PDF. It may be damaged or password protected.", info.Name)
	}
	info.Pages = pages
	return info, nil
}

func checkPDF(path string, size int64) (int, error) {
	pdfcpuOnce.Do(pdfapi.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := pdfapi.Validate(f, conf); err != nil {
		return 0, fmt.Errorf("validate: %w", err)
	}

	r, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	n := r.NumPage()
	if n < 1 {
		return 0, errors.New("no pages")
	}
	return n, nil
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
