package autelfr

import (
	"fmt"
	"sort"
)

// Kind identifies one of the structurally distinct record shapes.
type Kind string

const (
	KindHead    Kind = "head"
	KindVideo   Kind = "video"
	KindImage   Kind = "image"
	KindInBase  Kind = "in_base"
	KindInFull  Kind = "in_full"
	KindOutBase Kind = "out_base"
	KindOutFull Kind = "out_full"
)

// Kinds lists every record kind in serialization order.
var Kinds = []Kind{KindHead, KindVideo, KindImage, KindInBase, KindInFull, KindOutBase, KindOutFull}

// BodyKinds lists the kinds that appear behind a type tag.
var BodyKinds = []Kind{KindVideo, KindImage, KindInBase, KindInFull, KindOutBase, KindOutFull}

// IsFlight reports whether records of this kind carry flight dynamics.
func (k Kind) IsFlight() bool {
	switch k {
	case KindInBase, KindInFull, KindOutBase, KindOutFull:
		return true
	}
	return false
}

// IsMedia reports whether records of this kind describe a video or image.
func (k Kind) IsMedia() bool {
	return k == KindVideo || k == KindImage
}

// ParseKind converts a kind name into a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", name)
}

// tagKinds maps the one-byte wire tag to the record kind it introduces.
// The head record is located by offset and never tagged.
var tagKinds = map[uint8]Kind{
	0:  KindOutFull,
	1:  KindOutBase,
	2:  KindInFull,
	3:  KindInBase,
	14: KindImage,
	15: KindVideo,
}

// KindForTag resolves a wire tag.
func KindForTag(tag uint8) (Kind, bool) {
	k, ok := tagKinds[tag]
	return k, ok
}

// TagForKind returns the wire tag of a tagged kind.
func TagForKind(kind Kind) (uint8, bool) {
	for tag, k := range tagKinds {
		if k == kind {
			return tag, true
		}
	}
	return 0, false
}

var (
	headFields = []string{
		"aircraft_sn", "battery_sn", "location_name", "drone_type", "distance",
		"flight_time", "max_altitude", "video_time", "flight_at", "time_zone",
		"start_latitude", "start_longitude", "image_count", "video_count",
		"firmware_size", "firmware_info",
	}
	videoFields = []string{
		"media_filename", "media_timestamp", "latitude", "longitude", "duration",
	}
	imageFields = []string{
		"media_filename", "media_timestamp", "latitude", "longitude",
	}
	inBaseFields = []string{
		"current_time", "drone_altitude", "x_speed", "y_speed", "z_speed",
		"gimbal_pitch", "gimbal_roll", "gimbal_yaw",
		"drone_pitch", "drone_roll", "drone_yaw",
		"m_left_horizontal", "m_left_vertical", "m_right_horizontal", "m_right_vertical",
		"rc_mode_state", "offline_duration", "rc_button_state", "phone_heading",
		"radar_info_timestamp", "front_radar_info", "rear_radar_info", "left_radar_info",
		"right_radar_info", "top_radar_info", "bottom_radar_info",
		"param_1", "param_2",
	}
	inFullFields = []string{
		"current_time", "drone_altitude", "x_speed", "y_speed", "z_speed",
		"gimbal_pitch", "gimbal_roll", "gimbal_yaw",
		"drone_pitch", "drone_roll", "drone_yaw",
		"m_left_horizontal", "m_left_vertical", "m_right_horizontal", "m_right_vertical",
		"rc_mode_state", "offline_duration", "rc_button_state", "phone_heading",
		"radar_info_timestamp", "front_radar_info", "rear_radar_info", "left_radar_info",
		"right_radar_info", "top_radar_info", "bottom_radar_info",
		"flight_mode", "camera_mode", "rcRSSI", "m_mode", "drone_warning", "drone_ext_warning",
		"gimbal_warning", "time_left", "design_volume", "full_charge_volume",
		"current_electricity", "current_voltage", "current_current", "remain_power_percent", "battery_temperature",
		"battery_state", "number_of_discharges", "cell_count", "cell_voltages",
		"vision_warning", "vision_ext_warning", "vision_error_code",
		"max_flight_altitude", "go_home_altitude", "beginner_mode_enable",
		"low_battery_warning_threshold", "serious_battery_warning_threshold",
		"max_flight_radius", "max_flight_horizontal_speed", "obstacle_avoidance_enabled",
		"radar_enabled", "max_error",
		"param_1", "param_2", "param_3", "param_4", "param_5",
	}
	outBaseFields = []string{
		"current_time", "drone_latitude", "drone_longitude", "drone_altitude",
		"x_speed", "y_speed", "z_speed",
		"gimbal_pitch", "gimbal_roll", "gimbal_yaw",
		"drone_pitch", "drone_roll", "drone_yaw",
		"m_left_horizontal", "m_left_vertical", "m_right_horizontal", "m_right_vertical",
		"rc_mode_state", "offline_duration", "rc_button_state", "phone_heading",
		"radar_info_timestamp", "front_radar_info", "rear_radar_info", "left_radar_info",
		"right_radar_info", "top_radar_info", "bottom_radar_info",
		"param_1", "param_2",
	}
	outFullFields = []string{
		"current_time", "drone_latitude", "drone_longitude", "drone_altitude",
		"x_speed", "y_speed", "z_speed",
		"gimbal_pitch", "gimbal_roll", "gimbal_yaw",
		"drone_pitch", "drone_roll", "drone_yaw",
		"m_left_horizontal", "m_left_vertical", "m_right_horizontal", "m_right_vertical",
		"rc_mode_state", "offline_duration", "rc_button_state", "phone_heading",
		"radar_info_timestamp", "front_radar_info", "rear_radar_info", "left_radar_info",
		"right_radar_info", "top_radar_info", "bottom_radar_info",
		"flight_mode", "camera_mode", "gps_signal_level", "rcRSSI", "m_mode",
		"home_latitude", "home_longitude", "distance_from_home", "current_journey",
		"drone_warning", "drone_ext_warning", "gimbal_warning", "time_left",
		"back_time", "satellite_count", "design_volume", "full_charge_volume",
		"current_electricity", "current_voltage", "current_current",
		"remain_power_percent", "battery_temperature", "battery_state",
		"number_of_discharges", "cell_count", "cell_voltages",
		"vision_warning", "vision_ext_warning", "vision_error_code",
		"max_flight_altitude", "go_home_altitude", "beginner_mode_enable",
		"low_battery_warning_threshold", "serious_battery_warning_threshold",
		"max_flight_radius", "max_flight_horizontal_speed", "obstacle_avoidance_enabled",
		"radar_enabled", "max_error",
		"param_1", "param_2", "param_3", "param_4", "param_5",
	}
)

// Schema is the resolved field layout of a record kind. Static fields are
// decoded in order; Dynamic, when set, is decoded last.
type Schema struct {
	Kind    Kind
	Fields  []Field
	Dynamic *Field
}

// Size returns the summed width of the static fields.
func (s Schema) Size() int {
	total := 0
	for _, f := range s.Fields {
		total += f.Width
	}
	return total
}

// NewSchema resolves an ordered list of field names against the catalog.
// A dynamic field must be the last entry and be preceded by its size field.
func NewSchema(kind Kind, names []string) (Schema, error) {
	s := Schema{Kind: kind}
	for i, name := range names {
		f, ok := catalog[name]
		if !ok {
			return Schema{}, fmt.Errorf("%s: field %q not in catalog", kind, name)
		}
		if f.Encoding == EncodingDynamic {
			if i != len(names)-1 {
				return Schema{}, fmt.Errorf("%s: dynamic field %q must be last", kind, name)
			}
			if i == 0 || names[i-1] != f.SizeField {
				return Schema{}, fmt.Errorf("%s: dynamic field %q must follow %q", kind, name, f.SizeField)
			}
			dyn := f
			s.Dynamic = &dyn
			continue
		}
		if f.Width <= 0 {
			return Schema{}, fmt.Errorf("%s: field %q has zero width", kind, name)
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

var schemas = mustBuildSchemas()

func mustBuildSchemas() map[Kind]Schema {
	layouts := map[Kind][]string{
		KindHead:    headFields,
		KindVideo:   videoFields,
		KindImage:   imageFields,
		KindInBase:  inBaseFields,
		KindInFull:  inFullFields,
		KindOutBase: outBaseFields,
		KindOutFull: outFullFields,
	}
	out := make(map[Kind]Schema, len(layouts))
	for kind, names := range layouts {
		s, err := NewSchema(kind, names)
		if err != nil {
			panic(fmt.Sprintf("autelfr: schema %v", err))
		}
		if s.Dynamic != nil && kind != KindHead {
			panic(fmt.Sprintf("autelfr: schema %s: dynamic field outside head", kind))
		}
		out[kind] = s
	}
	if err := validateTagMap(); err != nil {
		panic(fmt.Sprintf("autelfr: %v", err))
	}
	return out
}

func validateTagMap() error {
	seen := make(map[Kind]uint8, len(tagKinds))
	tags := make([]int, 0, len(tagKinds))
	for tag := range tagKinds {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	for _, t := range tags {
		kind := tagKinds[uint8(t)]
		if kind == KindHead {
			return fmt.Errorf("tag %d maps to head", t)
		}
		if prev, dup := seen[kind]; dup {
			return fmt.Errorf("tags %d and %d both map to %s", prev, t, kind)
		}
		seen[kind] = uint8(t)
	}
	if len(seen) != len(BodyKinds) {
		return fmt.Errorf("tag map covers %d kinds, want %d", len(seen), len(BodyKinds))
	}
	return nil
}

// SchemaFor returns the registered schema for kind.
func SchemaFor(kind Kind) (Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// RecordSize returns the static body size of kind, excluding the tag byte.
func RecordSize(kind Kind) int {
	return schemas[kind].Size()
}
