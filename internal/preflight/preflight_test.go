package preflight

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a valid document with the given number of blank pages,
// computing the cross-reference offsets.
func minimalPDF(pages int) []byte {
	var objs []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages),
	)
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var b bytes.Buffer
	require.NoError(t, png.Encode(&b, img))
	return b.Bytes()
}

func TestCheck_PDF(t *testing.T) {
	path := writeFile(t, "march.pdf", minimalPDF(3))
	info, err := Check(path, 0)
	require.NoError(t, err)
	assert.Equal(t, KindPDF, info.Kind)
	assert.Equal(t, "application/pdf", info.MIME)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, "march.pdf", info.Name)
}

func TestCheck_Image(t *testing.T) {
	path := writeFile(t, "scan.png", pngBytes(t))
	info, err := Check(path, 0)
	require.NoError(t, err)
	assert.Equal(t, KindImage, info.Kind)
	assert.Equal(t, "image/png", info.MIME)
	assert.Equal(t, 1, info.Pages)
}

// Detection goes by content, not extension.
func TestCheck_ContentOverExtension(t *testing.T) {
	path := writeFile(t, "statement.pdf", []byte("date,description,amount\n2025-03-01,coffee,3.50\n"))
	_, err := Check(path, 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCheck_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		max     int64
		wantErr error
	}{
		{"empty", "a.pdf", nil, 0, ErrEmpty},
		{"text", "a.txt", []byte("hello statement"), 0, ErrUnsupported},
		{"too large", "a.png", bytes.Repeat([]byte{0}, 2048), 1024, ErrTooLarge},
		{"broken pdf", "a.pdf", []byte("%PDF-1.4\nthis is not a pdf body\n"), 0, ErrBrokenPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data)
			_, err := Check(path, tt.max)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.NotEmpty(t, pe.UserMessage())
			assert.Contains(t, pe.UserMessage(), tt.file)
		})
	}
}

func TestCheck_MissingFile(t *testing.T) {
	_, err := Check(filepath.Join(t.TempDir(), "nope.pdf"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "2.0 KB", humanBytes(2048))
	assert.Equal(t, "20.0 MB", humanBytes(DefaultMaxBytes))
}
