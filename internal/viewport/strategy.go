package viewport

import "math"

// strategy names one screen-space query plan in the fallback chain. Each
// strategy produces the rectangle set to query; the orchestrator in Query
// walks the chain and stops at the first strategy yielding any feature.
type strategy struct {
	name string
	// partial marks a strategy whose per-rectangle failures are swallowed
	// (results from the surviving rectangles are still used).
	partial bool
	rects   func(width, height float64) []Rect
}

// strategyChain is the ordered fallback chain: the full viewport split into
// quadrants, then a reduced centered area, then a small center-point probe.
var strategyChain = []strategy{
	{
		name:    "chunked",
		partial: true,
		rects: func(w, h float64) []Rect {
			halfW, halfH := w/2, h/2
			return []Rect{
				{X: 0, Y: 0, W: halfW, H: halfH},
				{X: halfW, Y: 0, W: halfW, H: halfH},
				{X: 0, Y: halfH, W: halfW, H: halfH},
				{X: halfW, Y: halfH, W: halfW, H: halfH},
			}
		},
	},
	{
		name: "smaller-area",
		rects: func(w, h float64) []Rect {
			side := 0.6 * math.Min(w, h)
			return []Rect{{X: (w - side) / 2, Y: (h - side) / 2, W: side, H: side}}
		},
	},
	{
		name: "center-point",
		rects: func(w, h float64) []Rect {
			return []Rect{{X: w/2 - 50, Y: h/2 - 50, W: 100, H: 100}}
		},
	},
}
