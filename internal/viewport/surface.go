package viewport

import (
	"context"
)

// Viewport is the map camera state a query runs against. Width and Height
// are the rendered surface size in screen pixels.
type Viewport struct {
	CenterLongitude float64 `json:"centerLongitude"`
	CenterLatitude  float64 `json:"centerLatitude"`
	Zoom            float64 `json:"zoom"`
	Bearing         float64 `json:"bearing"`
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
}

// Rect is a screen-space rectangle in pixels, origin top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Geometry is the rendered feature geometry. Only Point and LineString carry
// usable coordinates; anything else is rejected during mapping.
type Geometry struct {
	Type  string      `json:"type"`
	Point []float64   `json:"point,omitempty"` // [lon, lat]
	Line  [][]float64 `json:"line,omitempty"`  // [[lon, lat], ...]
}

// Feature is a single rendered map feature returned by the surface.
type Feature struct {
	LayerID    string         `json:"layerId,omitempty"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// MapSurface is the rendering collaborator the query service depends on: a
// feature-query-by-screen-rectangle primitive plus layer introspection.
type MapSurface interface {
	// Ready reports whether the surface has initialized its style and
	// sources. Querying before readiness is the only hard failure.
	Ready() bool

	// StreamLayerIDs returns the identifiers of stream-bearing layers.
	StreamLayerIDs() []string

	// QueryRenderedFeatures returns the features of the given layers whose
	// rendered geometry intersects the screen rectangle.
	QueryRenderedFeatures(ctx context.Context, view Viewport, rect Rect, layerIDs []string) ([]Feature, error)
}
