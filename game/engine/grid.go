package engine

import "github.com/go-gl/mathgl/mgl64"

// Grid maps discrete cells to spatial centers.
type Grid struct {
	Width   int
	Height  int
	Spacing int
}

// DefaultGrid returns the 5x5 grid with 130 unit spacing.
func DefaultGrid() Grid {
	return Grid{Width: DefaultMaxX, Height: DefaultMaxY, Spacing: DefaultGridSpacing}
}

// CenterOf returns the spatial center of a cell: location * spacing.
func (g Grid) CenterOf(loc GridLocation) mgl64.Vec2 {
	return mgl64.Vec2{float64(loc.X * g.Spacing), float64(loc.Y * g.Spacing)}
}

// Contains reports whether loc lies in [0,Width) x [0,Height).
func (g Grid) Contains(loc GridLocation) bool {
	return loc.X >= 0 && loc.X < g.Width && loc.Y >= 0 && loc.Y < g.Height
}

// Cells returns every cell of the grid in column-major order.
func (g Grid) Cells() []GridLocation {
	cells := make([]GridLocation, 0, g.Width*g.Height)
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			cells = append(cells, GridLocation{X: x, Y: y})
		}
	}
	return cells
}

// Center returns the midpoint of the grid in spatial units, used to place a camera.
func (g Grid) Center() mgl64.Vec2 {
	maxCell := g.CenterOf(GridLocation{X: g.Width - 1, Y: g.Height - 1})
	return maxCell.Mul(0.5)
}
