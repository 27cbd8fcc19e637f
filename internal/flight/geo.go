package flight

import (
	"math"
	"strconv"
)

// EarthRadius is the mean Earth radius in meters used for great-circle math.
const EarthRadius = 6371000.0

// LatLon is a WGS84 position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position is a planar offset in meters. X grows east, Y grows north.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// DistanceTo returns the haversine distance to o in meters.
func (p LatLon) DistanceTo(o LatLon) float64 {
	lat1, lat2 := radians(p.Lat), radians(o.Lat)
	dLat := lat2 - lat1
	dLon := radians(o.Lon - p.Lon)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BearingTo returns the initial great-circle bearing to o in radians,
// clockwise from north.
func (p LatLon) BearingTo(o LatLon) float64 {
	lat1, lat2 := radians(p.Lat), radians(o.Lat)
	dLon := radians(o.Lon - p.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// PositionFrom returns p as an east/north offset from origin. The distance
// is the haversine distance split along the bearing from origin.
func (p LatLon) PositionFrom(origin LatLon) Position {
	d := origin.DistanceTo(p)
	if d == 0 {
		return Position{}
	}
	b := origin.BearingTo(p)
	return Position{X: d * math.Sin(b), Y: d * math.Cos(b)}
}

func (p LatLon) valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		!math.IsInf(p.Lat, 0) && !math.IsInf(p.Lon, 0)
}

// GeoBox is the axis-aligned bounding box of a set of positions.
type GeoBox struct {
	SouthWest LatLon `json:"southWest"`
	NorthEast LatLon `json:"northEast"`
}

// BoundsOf returns the smallest box holding every point. ok is false when
// points is empty.
func BoundsOf(points []LatLon) (box GeoBox, ok bool) {
	if len(points) == 0 {
		return GeoBox{}, false
	}
	box = GeoBox{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		box.SouthWest.Lat = math.Min(box.SouthWest.Lat, p.Lat)
		box.SouthWest.Lon = math.Min(box.SouthWest.Lon, p.Lon)
		box.NorthEast.Lat = math.Max(box.NorthEast.Lat, p.Lat)
		box.NorthEast.Lon = math.Max(box.NorthEast.Lon, p.Lon)
	}
	return box, true
}

func (b GeoBox) North() float64 { return b.NorthEast.Lat }
func (b GeoBox) South() float64 { return b.SouthWest.Lat }
func (b GeoBox) East() float64  { return b.NorthEast.Lon }
func (b GeoBox) West() float64  { return b.SouthWest.Lon }

func (b GeoBox) Center() LatLon {
	return LatLon{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lon: (b.SouthWest.Lon + b.NorthEast.Lon) / 2,
	}
}

// OSMURL links to an OpenStreetMap view with a marker at the box center.
func (b GeoBox) OSMURL() string {
	c := b.Center()
	lat := strconv.FormatFloat(c.Lat, 'f', -1, 64)
	lon := strconv.FormatFloat(c.Lon, 'f', -1, 64)
	return "https://www.openstreetmap.org/?mlat=" + lat + "&mlon=" + lon + "#map=12/" + lat + "/" + lon
}
