// Package view holds presentation geometry for the activity heatmap.
package view

import "ghactivity/models"

// Grid geometry in pixels.
const (
	CellSize   = 11
	CellGap    = 3
	ScrollStep = 200
)

// WeekWidth is the horizontal space taken by one week column.
const WeekWidth = CellSize + CellGap

// ContentWidth returns the scrollable width of a grid with the given number
// of week columns.
func ContentWidth(weeks int) int {
	if weeks <= 0 {
		return 0
	}
	return weeks*WeekWidth - CellGap
}

// Viewport is a horizontally scrolled window over the grid.
type Viewport struct {
	Offset        int
	ContentWidth  int
	ViewportWidth int
}

// MaxScroll is the largest valid offset.
func (v Viewport) MaxScroll() int {
	if m := v.ContentWidth - v.ViewportWidth; m > 0 {
		return m
	}
	return 0
}

// Clamp returns v with its offset inside [0, MaxScroll].
func (v Viewport) Clamp() Viewport {
	v.Offset = min(max(v.Offset, 0), v.MaxScroll())
	return v
}

// Prev scrolls one step towards the start.
func (v Viewport) Prev() Viewport {
	v.Offset -= ScrollStep
	return v.Clamp()
}

// Next scrolls one step towards the end.
func (v Viewport) Next() Viewport {
	v.Offset += ScrollStep
	return v.Clamp()
}

// CanPrev reports whether Prev would move.
func (v Viewport) CanPrev() bool {
	return v.Clamp().Offset > 0
}

// CanNext reports whether Next would move.
func (v Viewport) CanNext() bool {
	return v.Clamp().Offset < v.MaxScroll()
}

// Rect is a cell's box in content coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// CellRect returns the box of the cell at the given week column and weekday row.
func CellRect(week, weekday int) Rect {
	return Rect{X: week * WeekWidth, Y: weekday * WeekWidth, Width: CellSize, Height: CellSize}
}

// Point is a position in viewport coordinates.
type Point struct {
	X, Y int
}

// TooltipPosition anchors a tooltip centred above cell, shifted by the current
// scroll offset.
func TooltipPosition(cell Rect, offset int) Point {
	return Point{
		X: cell.X + cell.Width/2 - offset,
		Y: cell.Y,
	}
}

// Interactive reports whether date belongs to the selected year. Padding
// cells outside it are rendered but not interactive.
func Interactive(date string, year int) bool {
	t, err := models.ParseDate(date)
	if err != nil {
		return false
	}
	return t.Year() == year
}
