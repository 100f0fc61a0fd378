package viewport

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// StationRecord is one stream station in the server-side index.
type StationRecord struct {
	StationID   string  `json:"station_id"`
	ReachID     string  `json:"reach_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	StreamOrder int     `json:"stream_order"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

// StationIndex is a MapSurface backed by an in-memory station list instead
// of a rendering engine. Stations are projected to screen space with a
// spherical web-mercator projection; bearing is not applied (the server-side
// camera never rotates).
type StationIndex struct {
	layerID  string
	stations []StationRecord
}

// NewStationIndex builds a surface over the given stations.
func NewStationIndex(layerID string, stations []StationRecord) *StationIndex {
	return &StationIndex{layerID: layerID, stations: stations}
}

// NewStationIndexFromFile loads the station list from a JSON file.
func NewStationIndexFromFile(layerID, path string) (*StationIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station index: %w", err)
	}
	var stations []StationRecord
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("decode station index: %w", err)
	}
	return NewStationIndex(layerID, stations), nil
}

// Ready reports whether the index holds any stations.
func (s *StationIndex) Ready() bool { return len(s.stations) > 0 }

// StreamLayerIDs returns the single synthetic layer the index serves.
func (s *StationIndex) StreamLayerIDs() []string { return []string{s.layerID} }

// QueryRenderedFeatures returns the stations whose projected screen position
// falls inside the rectangle, as Point features with the same property names
// the rendered vector tiles use.
func (s *StationIndex) QueryRenderedFeatures(_ context.Context, view Viewport, rect Rect, layerIDs []string) ([]Feature, error) {
	if !layerMatch(layerIDs, s.layerID) {
		return nil, nil
	}

	var features []Feature
	for _, st := range s.stations {
		x, y := project(view, st.Longitude, st.Latitude)
		if x < rect.X || x > rect.X+rect.W || y < rect.Y || y > rect.Y+rect.H {
			continue
		}
		props := map[string]any{
			"station_id": st.StationID,
			"streamOrde": float64(st.StreamOrder),
		}
		if st.ReachID != "" {
			props["reach_id"] = st.ReachID
		}
		if st.Name != "" {
			props["name"] = st.Name
		}
		features = append(features, Feature{
			LayerID:    s.layerID,
			Properties: props,
			Geometry:   Geometry{Type: "Point", Point: []float64{st.Longitude, st.Latitude}},
		})
	}
	return features, nil
}

func layerMatch(requested []string, layerID string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, id := range requested {
		if id == layerID {
			return true
		}
	}
	return false
}

// project converts a geographic coordinate to screen pixels for the given
// camera, using 512px world tiles.
func project(view Viewport, lon, lat float64) (x, y float64) {
	worldSize := 512 * math.Exp2(view.Zoom)

	mx := (lon + 180) / 360
	my := mercY(lat)

	cx := (view.CenterLongitude + 180) / 360
	cy := mercY(view.CenterLatitude)

	x = (mx-cx)*worldSize + view.Width/2
	y = (my-cy)*worldSize + view.Height/2
	return x, y
}

func mercY(lat float64) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2
}
