// Package samples builds synthetic AUTEL_FR logs for tests and fixtures.
package samples

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"example.com/autellog/internal/autelfr"
)

const (
	// FileName is the name WriteFile uses for the deterministic sample.
	FileName = "sample.autel"

	AircraftSN = "7HQ12345678901234"
	BatterySN  = "BAT-0001"
	Location   = "Test Field"
	Firmware   = "2.0.1"
	StartLat   = 47.5
	StartLon   = 19.04
)

// FlightAtMs is the head's flight_at, in Unix milliseconds.
const FlightAtMs uint64 = 1_700_000_000_000

// Fields holds values for named fields. Missing fields are written as zero.
// Accepted Go types: unsigned and signed integers, float32/float64,
// []float64 for float arrays and string for fixed strings.
type Fields map[string]any

// Builder accumulates a log file byte by byte.
type Builder struct {
	buf bytes.Buffer
	err error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Preamble writes the magic tag and version.
func (b *Builder) Preamble(magic string, version uint32) *Builder {
	var m [8]byte
	copy(m[:], magic)
	b.buf.Write(m[:])
	b.putUint(uint64(version), 4)
	return b
}

// Head writes the untagged head record. firmware is written verbatim behind
// the static fields and firmware_size defaults to its length.
func (b *Builder) Head(values Fields, firmware []byte) *Builder {
	merged := Fields{"firmware_size": len(firmware)}
	for k, v := range values {
		merged[k] = v
	}
	s, _ := autelfr.SchemaFor(autelfr.KindHead)
	b.writeFields(s, merged)
	b.buf.Write(firmware)
	return b
}

// Record writes a type tag followed by a record body of kind.
func (b *Builder) Record(kind autelfr.Kind, values Fields) *Builder {
	tag, ok := autelfr.TagForKind(kind)
	if !ok {
		b.setErr(fmt.Errorf("kind %s has no tag", kind))
		return b
	}
	b.buf.WriteByte(tag)
	s, _ := autelfr.SchemaFor(kind)
	b.writeFields(s, values)
	return b
}

// Raw appends arbitrary bytes.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf.Write(p)
	return b
}

func (b *Builder) Len() int {
	return b.buf.Len()
}

func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]byte(nil), b.buf.Bytes()...), nil
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) writeFields(s autelfr.Schema, values Fields) {
	for _, f := range s.Fields {
		v := values[f.Name]
		if err := b.writeField(f, v); err != nil {
			b.setErr(fmt.Errorf("%s.%s: %w", s.Kind, f.Name, err))
			b.buf.Write(make([]byte, f.Width))
		}
	}
}

func (b *Builder) writeField(f autelfr.Field, v any) error {
	switch f.Encoding {
	case autelfr.EncodingUint, autelfr.EncodingHex:
		n, err := toUint(v)
		if err != nil {
			return err
		}
		b.putUint(n, f.Width)
	case autelfr.EncodingFloat:
		x, err := toFloat(v)
		if err != nil {
			return err
		}
		if f.Width == 8 {
			b.putUint(math.Float64bits(x), 8)
		} else {
			b.putUint(uint64(math.Float32bits(float32(x))), 4)
		}
	case autelfr.EncodingFloatArray:
		out := make([]byte, f.Width)
		if v != nil {
			xs, ok := v.([]float64)
			if !ok {
				return fmt.Errorf("want []float64, got %T", v)
			}
			for i, x := range xs {
				if (i+1)*4 > f.Width {
					break
				}
				binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(x)))
			}
		}
		b.buf.Write(out)
	case autelfr.EncodingString:
		out := make([]byte, f.Width)
		if v != nil {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("want string, got %T", v)
			}
			copy(out, s)
		}
		b.buf.Write(out)
	default:
		return fmt.Errorf("cannot encode %s", f.Encoding)
	}
	return nil
}

func (b *Builder) putUint(v uint64, width int) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:width])
}

func toUint(v any) (uint64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("want float, got %T", v)
	}
}

// Flight returns values for a flight-dynamics record at time ms. The
// aircraft heads due north from the start point at 0.001 degrees of latitude
// per 100 ms, with home at the start point. Attitude angles are in radians.
func Flight(ms uint32, alt float64) Fields {
	return Fields{
		"current_time":       ms,
		"drone_altitude":     alt,
		"drone_latitude":     StartLat + float64(ms)/100000,
		"drone_longitude":    StartLon,
		"home_latitude":      StartLat,
		"home_longitude":     StartLon,
		"distance_from_home": float64(ms) / 10,
		"x_speed":            1.5,
		"gimbal_pitch":       -30.0,
		"drone_yaw":          math.Pi / 2,
		"phone_heading":      180.25,
		"drone_warning":      uint32(0x10),
		"cell_count":         4,
		"cell_voltages":      []float64{3850, 3851, 3849, 3850},
	}
}

// HeadFields returns the head values used by Build.
func HeadFields() Fields {
	return Fields{
		"aircraft_sn":     AircraftSN,
		"battery_sn":      BatterySN,
		"location_name":   Location,
		"drone_type":      7,
		"distance":        1234.5,
		"flight_time":     uint32(300),
		"max_altitude":    120.0,
		"video_time":      15000.0,
		"flight_at":       FlightAtMs,
		"time_zone":       uint32(1),
		"start_latitude":  StartLat,
		"start_longitude": StartLon,
		"image_count":     1,
		"video_count":     1,
	}
}

// Build constructs the deterministic sample log: a head, three outdoor
// records, one indoor record, one image and one video.
func Build() ([]byte, error) {
	b := NewBuilder().
		Preamble(autelfr.Magic, autelfr.Version).
		Head(HeadFields(), append([]byte(Firmware), 0))
	b.Record(autelfr.KindOutFull, Flight(0, 0))
	b.Record(autelfr.KindOutBase, Flight(100, 1.5))
	b.Record(autelfr.KindImage, Fields{
		"media_filename":  "IMG_0001.JPG",
		"media_timestamp": FlightAtMs + 150,
		"latitude":        StartLat,
		"longitude":       StartLon,
	})
	b.Record(autelfr.KindOutFull, Flight(200, 3.0))
	b.Record(autelfr.KindVideo, Fields{
		"media_filename":  "MAX_0001.MP4",
		"media_timestamp": FlightAtMs + 250,
		"latitude":        StartLat,
		"longitude":       StartLon,
		"duration":        uint32(15000),
	})
	b.Record(autelfr.KindInBase, Flight(300, 2.0))
	return b.Bytes()
}

// WriteFile writes the deterministic sample into dir and returns its path.
func WriteFile(dir string) (string, error) {
	data, err := Build()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
