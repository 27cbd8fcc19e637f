package autelfr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

type ValueType uint8

const (
	ValueUint ValueType = iota
	ValueFloat
	ValueFloats
	ValueString
)

// Value is a decoded field. Exactly one payload member is meaningful,
// selected by Type. Hex-rendered integers are carried as strings.
type Value struct {
	Type   ValueType
	Uint   uint64
	Float  float64
	Floats []float64
	Str    string
}

func UintValue(v uint64) Value { return Value{Type: ValueUint, Uint: v} }
func FloatValue(v float64) Value { return Value{Type: ValueFloat, Float: v} }
func StringValue(v string) Value { return Value{Type: ValueString, Str: v} }
func FloatsValue(v []float64) Value { return Value{Type: ValueFloats, Floats: v} }

// Number returns the value as a float64 for scalar numeric types.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case ValueUint:
		return float64(v.Uint), true
	case ValueFloat:
		return v.Float, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Type {
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueFloats:
		return fmt.Sprint(v.Floats)
	default:
		return v.Str
	}
}

// MarshalJSON writes the bare payload. Non-finite floats become null since
// JSON has no representation for them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueUint:
		return []byte(strconv.FormatUint(v.Uint, 10)), nil
	case ValueFloat:
		return marshalFloat(v.Float), nil
	case ValueFloats:
		out := []byte{'['}
		for i, f := range v.Floats {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, marshalFloat(f)...)
		}
		return append(out, ']'), nil
	default:
		return json.Marshal(v.Str)
	}
}

func marshalFloat(f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null")
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64))
}

// Record is one decoded record keyed by field name.
type Record map[string]Value

func (r Record) Uint(name string) (uint64, bool) {
	v, ok := r[name]
	if !ok || v.Type != ValueUint {
		return 0, false
	}
	return v.Uint, true
}

func (r Record) Float(name string) (float64, bool) {
	v, ok := r[name]
	if !ok {
		return 0, false
	}
	return v.Number()
}

func (r Record) Text(name string) string {
	v, ok := r[name]
	if !ok || v.Type != ValueString {
		return ""
	}
	return v.Str
}

func (r Record) Floats(name string) []float64 {
	v, ok := r[name]
	if !ok || v.Type != ValueFloats {
		return nil
	}
	return v.Floats
}

// RecordTrack lists the offsets at which records of one kind begin. For
// tagged kinds the offset is that of the tag byte.
type RecordTrack struct {
	Kind    Kind
	Size    int
	Offsets []int
}

func (t *RecordTrack) Count() int {
	if t == nil {
		return 0
	}
	return len(t.Offsets)
}

func (t *RecordTrack) MarshalJSON() ([]byte, error) {
	offsets := t.Offsets
	if offsets == nil {
		offsets = []int{}
	}
	return json.Marshal(struct {
		Name    Kind  `json:"name"`
		Count   int   `json:"count"`
		Size    int   `json:"size"`
		Offsets []int `json:"offsets"`
	}{t.Kind, len(offsets), t.Size, offsets})
}

// Tracks holds one RecordTrack per kind.
type Tracks map[Kind]*RecordTrack

func newTracks(headSize int) Tracks {
	tracks := make(Tracks, len(Kinds))
	tracks[KindHead] = &RecordTrack{Kind: KindHead, Size: headSize}
	for _, k := range BodyKinds {
		tracks[k] = &RecordTrack{Kind: k, Size: RecordSize(k)}
	}
	return tracks
}

// TrackEntry locates one record in the file.
type TrackEntry struct {
	Kind   Kind
	Offset int
	// Index is the position of the record within its kind.
	Index int
}

// Entries merges every non-head track into file order.
func (t Tracks) Entries() []TrackEntry {
	var out []TrackEntry
	for _, k := range BodyKinds {
		track := t[k]
		if track == nil {
			continue
		}
		for i, off := range track.Offsets {
			out = append(out, TrackEntry{Kind: k, Offset: off, Index: i})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// ParseResult is the fully decoded content of one log file.
type ParseResult struct {
	Filename     string
	Header       Record
	Records      map[Kind][]Record
	Tracks       Tracks
	TotalRecords int
}

// RecordsOf returns the decoded records of kind, in file order.
func (r *ParseResult) RecordsOf(kind Kind) []Record {
	if kind == KindHead {
		return []Record{r.Header}
	}
	return r.Records[kind]
}

// Count returns how many records of kind were decoded. The head counts once.
func (r *ParseResult) Count(kind Kind) int {
	if kind == KindHead {
		return 1
	}
	return len(r.Records[kind])
}

func (r *ParseResult) MarshalJSON() ([]byte, error) {
	records := make(map[string]any, len(Kinds))
	records[string(KindHead)] = r.Header
	for _, k := range BodyKinds {
		list := r.Records[k]
		if list == nil {
			list = []Record{}
		}
		records[string(k)] = list
	}
	return json.Marshal(struct {
		Filename     string         `json:"filename"`
		Header       Record         `json:"header"`
		Records      map[string]any `json:"records"`
		RecordTracks Tracks         `json:"record_tracks"`
		TotalRecords int            `json:"total_records"`
	}{r.Filename, r.Header, records, r.Tracks, r.TotalRecords})
}
