package geometry

import "image"

// Bounds of the structural filter parameter (pixel size / dot spacing).
const (
	MinCellSize = 1
	MaxCellSize = 64
)

// ClampCellSize limits a cell size to [MinCellSize, MaxCellSize].
func ClampCellSize(size int) int {
	if size < MinCellSize {
		return MinCellSize
	}
	if size > MaxCellSize {
		return MaxCellSize
	}
	return size
}

// CellGrid partitions a frame into square cells anchored at the top-left corner.
// Cells on the right and bottom edges may be partial.
type CellGrid struct {
	Columns  int // ceil(Width / CellSize)
	Rows     int // ceil(Height / CellSize)
	CellSize int // clamped cell edge in pixels

	Width  int // frame width
	Height int // frame height
}

// CalculateCellGrid computes the cell layout for a width x height frame.
// cellSize is clamped to [MinCellSize, MaxCellSize].
func CalculateCellGrid(width, height, cellSize int) *CellGrid {
	size := ClampCellSize(cellSize)

	// Round up so partial border cells are covered
	columns := ceilDiv(width, size)
	rows := ceilDiv(height, size)

	return &CellGrid{
		Columns:  columns,
		Rows:     rows,
		CellSize: size,
		Width:    width,
		Height:   height,
	}
}

// Count returns the number of cells.
func (g *CellGrid) Count() int {
	return g.Columns * g.Rows
}

// Origin returns the top-left pixel of a cell (its sample position).
func (g *CellGrid) Origin(col, row int) image.Point {
	return image.Pt(col*g.CellSize, row*g.CellSize)
}

// Cell returns the rectangle covered by a cell, clipped to the frame.
func (g *CellGrid) Cell(col, row int) image.Rectangle {
	o := g.Origin(col, row)
	r := image.Rect(o.X, o.Y, o.X+g.CellSize, o.Y+g.CellSize)
	return r.Intersect(image.Rect(0, 0, g.Width, g.Height))
}

// Center returns the geometric centre of the full (unclipped) cell.
func (g *CellGrid) Center(col, row int) (x, y float64) {
	o := g.Origin(col, row)
	half := float64(g.CellSize) / 2
	return float64(o.X) + half, float64(o.Y) + half
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
