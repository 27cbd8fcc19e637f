package report

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"time"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/flight"
)

// Summary condenses one parsed flight log into the values shown in reports.
type Summary struct {
	Filename     string         `json:"filename"`
	SHA256       string         `json:"sha256,omitempty"`
	AircraftSN   string         `json:"aircraftSn"`
	BatterySN    string         `json:"batterySn"`
	Location     string         `json:"location"`
	DroneType    uint64         `json:"droneType"`
	FlightAt     time.Time      `json:"flightAt"`
	TimeZone     uint64         `json:"timeZone"`
	FlightTime   uint64         `json:"flightTime"`
	Distance     float64        `json:"distance"`
	MaxAltitude  float64        `json:"maxAltitude"`
	PeakAltitude float64        `json:"peakAltitude"`
	StartLat     float64        `json:"startLatitude"`
	StartLon     float64        `json:"startLongitude"`
	Firmware     string         `json:"firmware"`
	ImageCount   uint64         `json:"imageCount"`
	VideoCount   uint64         `json:"videoCount"`
	RecordCounts map[string]int `json:"recordCounts"`
	TotalRecords int            `json:"totalRecords"`
	// TimelineStart and TimelineEnd bound current_time over flight records.
	TimelineStart *uint64 `json:"timelineStart,omitempty"`
	TimelineEnd   *uint64 `json:"timelineEnd,omitempty"`
	// Bounds and MapURL are absent when no record carries a position.
	Bounds      *flight.GeoBox `json:"bounds,omitempty"`
	MapURL      string         `json:"mapUrl,omitempty"`
	PathLength  float64        `json:"pathLength"`
	TrackPoints int            `json:"trackPoints"`
	Media       []Media        `json:"media"`
}

type Media struct {
	Kind      autelfr.Kind `json:"kind"`
	Filename  string       `json:"filename"`
	Timestamp time.Time    `json:"timestamp"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Duration  uint64       `json:"duration,omitempty"`
}

// Summarize builds a Summary from res. digest is the hex SHA-256 of the
// source file and may be empty.
func Summarize(res *autelfr.ParseResult, digest string) Summary {
	h := res.Header
	s := Summary{
		Filename:     res.Filename,
		SHA256:       digest,
		AircraftSN:   h.Text("aircraft_sn"),
		BatterySN:    h.Text("battery_sn"),
		Location:     h.Text("location_name"),
		Firmware:     h.Text(autelfr.FieldFirmwareInfo),
		RecordCounts: make(map[string]int, len(autelfr.BodyKinds)),
		TotalRecords: res.TotalRecords,
		Media:        []Media{},
	}
	s.DroneType, _ = h.Uint("drone_type")
	s.TimeZone, _ = h.Uint("time_zone")
	s.FlightTime, _ = h.Uint("flight_time")
	s.ImageCount, _ = h.Uint("image_count")
	s.VideoCount, _ = h.Uint("video_count")
	if ms, ok := h.Uint("flight_at"); ok {
		s.FlightAt = unixMilli(ms)
	}
	s.Distance = headFloat(h, "distance")
	s.MaxAltitude = headFloat(h, "max_altitude")
	s.StartLat = headFloat(h, "start_latitude")
	s.StartLon = headFloat(h, "start_longitude")

	for _, kind := range autelfr.BodyKinds {
		list := res.Records[kind]
		s.RecordCounts[string(kind)] = len(list)
		if !kind.IsFlight() {
			continue
		}
		for _, rec := range list {
			if ts, ok := rec.Uint(autelfr.FieldCurrentTime); ok {
				if s.TimelineStart == nil || ts < *s.TimelineStart {
					v := ts
					s.TimelineStart = &v
				}
				if s.TimelineEnd == nil || ts > *s.TimelineEnd {
					v := ts
					s.TimelineEnd = &v
				}
			}
			if alt := headFloat(rec, "drone_altitude"); alt > s.PeakAltitude {
				s.PeakAltitude = alt
			}
		}
	}

	for _, e := range res.Tracks.Entries() {
		if !e.Kind.IsMedia() {
			continue
		}
		rec := res.Records[e.Kind][e.Index]
		m := Media{
			Kind:      e.Kind,
			Filename:  rec.Text("media_filename"),
			Latitude:  headFloat(rec, "latitude"),
			Longitude: headFloat(rec, "longitude"),
		}
		if ms, ok := rec.Uint("media_timestamp"); ok {
			m.Timestamp = unixMilli(ms)
		}
		m.Duration, _ = rec.Uint("duration")
		s.Media = append(s.Media, m)
	}

	fl := flight.FromResult(res)
	s.TrackPoints = len(fl.Track)
	s.PathLength = fl.PathLength()
	if fl.Bounds != nil {
		s.Bounds = fl.Bounds
		s.MapURL = fl.Bounds.OSMURL()
	}
	return s
}

// Kinds returns the record kinds present in RecordCounts in a stable order.
func (s Summary) Kinds() []string {
	out := make([]string, 0, len(s.RecordCounts))
	for k := range s.RecordCounts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Duration is the span covered by flight records, assuming millisecond
// current_time values.
func (s Summary) Duration() time.Duration {
	if s.TimelineStart == nil || s.TimelineEnd == nil {
		return 0
	}
	return time.Duration(*s.TimelineEnd-*s.TimelineStart) * time.Millisecond
}

func headFloat(r autelfr.Record, name string) float64 {
	v, ok := r.Float(name)
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

func SaveSummaryJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
