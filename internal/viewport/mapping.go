package viewport

import (
	"errors"
	"fmt"

	"github.com/riverwatch/river-flow-service/internal/domain"
)

var (
	errNoStationID     = errors.New("feature has no station_id property")
	errBadStreamOrder  = errors.New("feature streamOrde is not numeric")
	errNoCoordinate    = errors.New("feature geometry has no coordinate")
	errBadGeometryType = errors.New("unsupported geometry type")
)

// mapFeature converts one rendered feature into a VisibleStream. The vector
// tiles truncate the stream-order attribute name to "streamOrde", so that is
// the property queried. LineStrings contribute their midpoint vertex, Points
// their own coordinate; any other geometry is rejected.
func mapFeature(f Feature) (domain.VisibleStream, error) {
	stationID, ok := stringProperty(f.Properties, "station_id")
	if !ok {
		return domain.VisibleStream{}, errNoStationID
	}

	order, ok := numericProperty(f.Properties, "streamOrde")
	if !ok {
		return domain.VisibleStream{}, errBadStreamOrder
	}

	lon, lat, err := featureCoordinate(f.Geometry)
	if err != nil {
		return domain.VisibleStream{}, err
	}

	reachID := domain.NewReachID(stationID)
	if rid, ok := stringProperty(f.Properties, "reach_id"); ok {
		reachID = domain.NewReachID(rid)
	}

	name, _ := stringProperty(f.Properties, "name")
	if name == "" {
		name, _ = stringProperty(f.Properties, "gnis_name")
	}

	return domain.VisibleStream{
		StationID:   stationID,
		ReachID:     reachID,
		StreamOrder: int(order),
		Longitude:   lon,
		Latitude:    lat,
		Name:        name,
	}, nil
}

func featureCoordinate(g Geometry) (lon, lat float64, err error) {
	switch g.Type {
	case "Point":
		if len(g.Point) < 2 {
			return 0, 0, errNoCoordinate
		}
		return g.Point[0], g.Point[1], nil
	case "LineString":
		if len(g.Line) == 0 {
			return 0, 0, errNoCoordinate
		}
		mid := g.Line[len(g.Line)/2]
		if len(mid) < 2 {
			return 0, 0, errNoCoordinate
		}
		return mid[0], mid[1], nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", errBadGeometryType, g.Type)
	}
}

func stringProperty(props map[string]any, key string) (string, bool) {
	switch v := props[key].(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return fmt.Sprintf("%.0f", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	default:
		return "", false
	}
}

func numericProperty(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
