// Package ui holds the lipgloss palette and the terminal canvas that draws a
// statement page and its region overlays in character cells.
package ui

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/selector"
)

// ErrNotDataURL is returned for page images that are not base64 data URLs.
var ErrNotDataURL = errors.New("not a base64 data url")

// inkRamp goes from paper to ink.
const inkRamp = " .:-=+*#%@"

type layer int

const (
	layerBlank layer = iota
	layerInk
	layerFill
	layerRegion
	layerLabel
	layerPending
	layerCursor
)

var layerStyles = map[layer]lipgloss.Style{
	layerInk:     PageInkStyle,
	layerFill:    PendingFillStyle,
	layerRegion:  RegionStyle,
	layerLabel:   RegionLabelStyle,
	layerPending: PendingStyle,
	layerCursor:  CursorStyle,
}

type cell struct {
	r     rune
	layer layer
}

// Canvas maps the pixel space of a page onto a grid of terminal cells.
type Canvas struct {
	Cols, Rows   int
	PageW, PageH float64
}

// NewCanvas returns a canvas of cols x rows cells showing a page of the
// given pixel size.
func NewCanvas(cols, rows int, pageW, pageH float64) Canvas {
	return Canvas{Cols: cols, Rows: rows, PageW: pageW, PageH: pageH}
}

// Fit sizes a canvas for a page within maxCols x maxRows, keeping the page
// aspect ratio. Terminal cells are roughly twice as tall as they are wide.
func Fit(maxCols, maxRows int, pageW, pageH float64) (cols, rows int) {
	if maxCols < 1 || maxRows < 1 || !(pageW > 0) || !(pageH > 0) {
		return 0, 0
	}
	cols = maxCols
	rows = int(math.Round(float64(cols) * pageH / pageW / 2))
	if rows > maxRows {
		rows = maxRows
		cols = int(math.Round(float64(rows) * 2 * pageW / pageH))
	}
	return max(1, min(cols, maxCols)), max(1, rows)
}

// Valid reports whether the canvas can be drawn.
func (c Canvas) Valid() bool {
	return c.Cols > 0 && c.Rows > 0 && c.PageW > 0 && c.PageH > 0
}

func (c Canvas) cellW() float64 { return c.PageW / float64(c.Cols) }
func (c Canvas) cellH() float64 { return c.PageH / float64(c.Rows) }

// PointAt returns the page point at the center of cell (col, row).
func (c Canvas) PointAt(col, row int) geometry.Point {
	col = clampInt(col, 0, c.Cols-1)
	row = clampInt(row, 0, c.Rows-1)
	return geometry.Point{
		X: (float64(col) + 0.5) * c.cellW(),
		Y: (float64(row) + 0.5) * c.cellH(),
	}
}

// EdgeAt returns the top-left page point of cell (col, row). col may equal
// Cols and row may equal Rows to address the far page edges.
func (c Canvas) EdgeAt(col, row int) geometry.Point {
	col = clampInt(col, 0, c.Cols)
	row = clampInt(row, 0, c.Rows)
	return geometry.Point{X: float64(col) * c.cellW(), Y: float64(row) * c.cellH()}
}

// CellOf returns the cell containing p.
func (c Canvas) CellOf(p geometry.Point) (col, row int) {
	col = clampInt(int(math.Floor(p.X/c.cellW())), 0, c.Cols-1)
	row = clampInt(int(math.Floor(p.Y/c.cellH())), 0, c.Rows-1)
	return col, row
}

// cellRect returns the inclusive cell span covered by px.
func (c Canvas) cellRect(px geometry.PixelBox) (c0, r0, c1, r1 int) {
	c0 = clampInt(int(math.Floor(px.X/c.cellW())), 0, c.Cols-1)
	r0 = clampInt(int(math.Floor(px.Y/c.cellH())), 0, c.Rows-1)
	c1 = clampInt(int(math.Ceil((px.X+px.Width)/c.cellW()))-1, c0, c.Cols-1)
	r1 = clampInt(int(math.Ceil((px.Y+px.Height)/c.cellH()))-1, r0, c.Rows-1)
	return c0, r0, c1, r1
}

// Draw rasterizes ops and returns one styled string per row. img backs the
// OpImage call; cursor, when set, marks the keyboard pointer.
func (c Canvas) Draw(ops []selector.DrawOp, img image.Image, cursor *geometry.Point) []string {
	grid := c.raster(ops, img, cursor)
	if grid == nil {
		return nil
	}
	lines := make([]string, len(grid))
	for i, row := range grid {
		var b strings.Builder
		start := 0
		for j := 1; j <= len(row); j++ {
			if j < len(row) && row[j].layer == row[start].layer {
				continue
			}
			run := make([]rune, 0, j-start)
			for _, cl := range row[start:j] {
				run = append(run, cl.r)
			}
			if st, ok := layerStyles[row[start].layer]; ok {
				b.WriteString(st.Render(string(run)))
			} else {
				b.WriteString(string(run))
			}
			start = j
		}
		lines[i] = b.String()
	}
	return lines
}

// Plain is Draw without styling.
func (c Canvas) Plain(ops []selector.DrawOp, img image.Image, cursor *geometry.Point) []string {
	grid := c.raster(ops, img, cursor)
	if grid == nil {
		return nil
	}
	lines := make([]string, len(grid))
	for i, row := range grid {
		rs := make([]rune, len(row))
		for j, cl := range row {
			rs[j] = cl.r
		}
		lines[i] = string(rs)
	}
	return lines
}

func (c Canvas) raster(ops []selector.DrawOp, img image.Image, cursor *geometry.Point) [][]cell {
	if !c.Valid() {
		return nil
	}
	grid := make([][]cell, c.Rows)
	for i := range grid {
		grid[i] = make([]cell, c.Cols)
		for j := range grid[i] {
			grid[i][j] = cell{r: ' '}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case selector.OpImage:
			if img != nil {
				c.shade(grid, img)
			}
		case selector.OpRect:
			c.rect(grid, op)
		case selector.OpLabel:
			c.label(grid, op)
		}
	}

	if cursor != nil {
		col, row := c.CellOf(*cursor)
		grid[row][col] = cell{r: '+', layer: layerCursor}
	}
	return grid
}

// shade fills cells with an ink ramp from the average luminance of the image
// area behind each cell.
func (c Canvas) shade(grid [][]cell, img image.Image) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	const samples = 3
	sx := float64(b.Dx()) / float64(c.Cols)
	sy := float64(b.Dy()) / float64(c.Rows)
	for row := range grid {
		for col := range grid[row] {
			var sum float64
			for i := 0; i < samples; i++ {
				for j := 0; j < samples; j++ {
					x := b.Min.X + int((float64(col)+(float64(j)+0.5)/samples)*sx)
					y := b.Min.Y + int((float64(row)+(float64(i)+0.5)/samples)*sy)
					g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
					sum += float64(g.Y) / 255
				}
			}
			lum := sum / (samples * samples)
			idx := int(math.Round((1 - lum) * float64(len(inkRamp)-1)))
			r := rune(inkRamp[clampInt(idx, 0, len(inkRamp)-1)])
			l := layerInk
			if r == ' ' {
				l = layerBlank
			}
			grid[row][col] = cell{r: r, layer: l}
		}
	}
}

func (c Canvas) rect(grid [][]cell, op selector.DrawOp) {
	c0, r0, c1, r1 := c.cellRect(op.Rect)
	l := layerRegion
	h, v := '─', '│'
	if op.Stroke == selector.StrokeDashed {
		h, v = '╌', '╎'
	}
	if op.Active {
		l = layerPending
	}

	if op.Fill {
		for row := r0 + 1; row < r1; row++ {
			for col := c0 + 1; col < c1; col++ {
				grid[row][col].layer = layerFill
			}
		}
	}
	for col := c0; col <= c1; col++ {
		grid[r0][col] = cell{r: h, layer: l}
		grid[r1][col] = cell{r: h, layer: l}
	}
	for row := r0; row <= r1; row++ {
		grid[row][c0] = cell{r: v, layer: l}
		grid[row][c1] = cell{r: v, layer: l}
	}
	if c1 > c0 && r1 > r0 {
		grid[r0][c0] = cell{r: '┌', layer: l}
		grid[r0][c1] = cell{r: '┐', layer: l}
		grid[r1][c0] = cell{r: '└', layer: l}
		grid[r1][c1] = cell{r: '┘', layer: l}
	}
}

// label writes the text into the top border, inside the corners.
func (c Canvas) label(grid [][]cell, op selector.DrawOp) {
	c0, r0, c1, _ := c.cellRect(op.Rect)
	room := c1 - c0 - 1
	if room <= 0 || op.Text == "" {
		return
	}
	text := []rune(op.Text)
	if len(text) > room {
		text = text[:room]
	}
	for i, r := range text {
		grid[r0][c0+1+i] = cell{r: r, layer: layerLabel}
	}
}

// DecodeDataURL decodes a base64 PNG or JPEG data URL.
func DecodeDataURL(s string) (image.Image, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
