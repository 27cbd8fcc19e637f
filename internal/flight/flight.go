// Package flight turns a decoded log into a time-ordered track with
// geometry, and resolves the media files a log references.
package flight

import (
	"math"
	"sort"
	"time"

	"example.com/autellog/internal/autelfr"
)

// Orientation angles are in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Speed components are in meters per second.
type Speed struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TrackItem is one flight-dynamics record placed on the flight timeline.
// Location is set for outdoor records only. Relative and DistanceFromHome
// need the home position carried by full outdoor records.
type TrackItem struct {
	Index            int          `json:"index"`
	Kind             autelfr.Kind `json:"kind"`
	Time             time.Time    `json:"time"`
	OffsetMs         uint64       `json:"offsetMs"`
	Location         *LatLon      `json:"location,omitempty"`
	Altitude         float64      `json:"altitude"`
	Drone            Orientation  `json:"droneOrientation"`
	Gimbal           Orientation  `json:"gimbalOrientation"`
	Speed            Speed        `json:"speed"`
	Home             *LatLon      `json:"home,omitempty"`
	Relative         *Position    `json:"relativeLocation,omitempty"`
	DistanceFromHome *float64     `json:"distanceFromHome,omitempty"`
}

// MediaFile is an image or video the aircraft recorded. Path is filled by
// LocateMedia when a matching file is found on disk.
type MediaFile struct {
	Kind       autelfr.Kind `json:"kind"`
	Filename   string       `json:"filename"`
	Timestamp  time.Time    `json:"timestamp"`
	Location   LatLon       `json:"location"`
	DurationMs uint64       `json:"durationMs,omitempty"`
	Path       string       `json:"path,omitempty"`
}

type Flight struct {
	Filename   string      `json:"filename"`
	AircraftSN string      `json:"aircraftSn"`
	BatterySN  string      `json:"batterySn"`
	Location   string      `json:"location"`
	DroneType  uint64      `json:"droneType"`
	StartTime  time.Time   `json:"startTime"`
	Start      LatLon      `json:"start"`
	Bounds     *GeoBox     `json:"bounds,omitempty"`
	Track      []TrackItem `json:"track"`
	Media      []MediaFile `json:"media"`
}

// FromResult builds a Flight from res. Track items come from every flight
// kind, ordered by current_time with file order breaking ties.
func FromResult(res *autelfr.ParseResult) Flight {
	h := res.Header
	f := Flight{
		Filename:   res.Filename,
		AircraftSN: h.Text("aircraft_sn"),
		BatterySN:  h.Text("battery_sn"),
		Location:   h.Text("location_name"),
		Start:      LatLon{Lat: number(h, "start_latitude"), Lon: number(h, "start_longitude")},
		Track:      []TrackItem{},
		Media:      []MediaFile{},
	}
	f.DroneType, _ = h.Uint("drone_type")
	flightAt, _ := h.Uint("flight_at")
	f.StartTime = unixMilli(flightAt)

	type entry struct {
		kind autelfr.Kind
		ts   uint64
		rec  autelfr.Record
	}
	var entries []entry
	for _, e := range res.Tracks.Entries() {
		rec := res.Records[e.Kind][e.Index]
		switch {
		case e.Kind.IsFlight():
			ts, _ := rec.Uint(autelfr.FieldCurrentTime)
			entries = append(entries, entry{kind: e.Kind, ts: ts, rec: rec})
		case e.Kind.IsMedia():
			f.Media = append(f.Media, mediaFrom(e.Kind, rec))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })

	var locations []LatLon
	for i, e := range entries {
		item := trackItem(e.kind, e.rec, e.ts, flightAt)
		item.Index = i
		item.OffsetMs = e.ts - entries[0].ts
		if item.Location != nil {
			locations = append(locations, *item.Location)
		}
		f.Track = append(f.Track, item)
	}
	if box, ok := BoundsOf(locations); ok {
		f.Bounds = &box
	}
	return f
}

func trackItem(kind autelfr.Kind, rec autelfr.Record, ts, flightAt uint64) TrackItem {
	item := TrackItem{
		Kind:     kind,
		Time:     unixMilli(flightAt + ts),
		Altitude: number(rec, "drone_altitude"),
		Drone: Orientation{
			Pitch: degrees(number(rec, "drone_pitch")),
			Roll:  degrees(number(rec, "drone_roll")),
			Yaw:   degrees(number(rec, "drone_yaw")),
		},
		Gimbal: Orientation{
			Pitch: number(rec, "gimbal_pitch"),
			Roll:  number(rec, "gimbal_roll"),
			Yaw:   number(rec, "gimbal_yaw"),
		},
		Speed: Speed{
			X: number(rec, "x_speed"),
			Y: number(rec, "y_speed"),
			Z: number(rec, "z_speed"),
		},
	}
	if loc, ok := position(rec, "drone_latitude", "drone_longitude"); ok {
		item.Location = &loc
		if home, ok := position(rec, "home_latitude", "home_longitude"); ok {
			rel := loc.PositionFrom(home)
			item.Home = &home
			item.Relative = &rel
		}
	}
	if d, ok := rec.Float("distance_from_home"); ok && !math.IsNaN(d) && !math.IsInf(d, 0) {
		item.DistanceFromHome = &d
	}
	return item
}

func mediaFrom(kind autelfr.Kind, rec autelfr.Record) MediaFile {
	m := MediaFile{
		Kind:     kind,
		Filename: rec.Text("media_filename"),
		Location: LatLon{Lat: number(rec, "latitude"), Lon: number(rec, "longitude")},
	}
	if ms, ok := rec.Uint("media_timestamp"); ok {
		m.Timestamp = unixMilli(ms)
	}
	m.DurationMs, _ = rec.Uint("duration")
	return m
}

// Locations returns the positions of the outdoor track items in order.
func (f Flight) Locations() []LatLon {
	var out []LatLon
	for _, item := range f.Track {
		if item.Location != nil {
			out = append(out, *item.Location)
		}
	}
	return out
}

// PathLength sums the haversine distance between consecutive locations.
func (f Flight) PathLength() float64 {
	points := f.Locations()
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}

// Duration is the span between the first and last track item.
func (f Flight) Duration() time.Duration {
	if len(f.Track) == 0 {
		return 0
	}
	return time.Duration(f.Track[len(f.Track)-1].OffsetMs) * time.Millisecond
}

func position(rec autelfr.Record, latField, lonField string) (LatLon, bool) {
	lat, okLat := rec.Float(latField)
	lon, okLon := rec.Float(lonField)
	p := LatLon{Lat: lat, Lon: lon}
	if !okLat || !okLon || !p.valid() {
		return LatLon{}, false
	}
	return p, true
}

// number reads a numeric field, mapping missing and non-finite values to 0.
func number(rec autelfr.Record, name string) float64 {
	v, ok := rec.Float(name)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func unixMilli(ms uint64) time.Time {
	if ms == 0 || ms > math.MaxInt64 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
