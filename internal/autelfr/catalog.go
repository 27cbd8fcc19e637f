package autelfr

// Encoding selects how a field's bytes are turned into a Value.
type Encoding uint8

const (
	EncodingUint Encoding = iota
	EncodingFloat
	EncodingHex
	EncodingFloatArray
	EncodingString
	// EncodingDynamic marks a field whose width is read from another field
	// of the same record at decode time.
	EncodingDynamic
)

func (e Encoding) String() string {
	switch e {
	case EncodingUint:
		return "uint"
	case EncodingFloat:
		return "float"
	case EncodingHex:
		return "hex"
	case EncodingFloatArray:
		return "float_array"
	case EncodingString:
		return "string"
	case EncodingDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Field describes one named field of the wire format.
type Field struct {
	Name     string
	Width    int
	Encoding Encoding
	// SizeField names the field holding the width of a dynamic field.
	SizeField string
}

const (
	FieldCurrentTime  = "current_time"
	FieldFirmwareSize = "firmware_size"
	FieldFirmwareInfo = "firmware_info"
)

// widths lists the byte width of every field across all record kinds.
var widths = map[string]int{
	// head
	"aircraft_sn":     18,
	"battery_sn":      32,
	"location_name":   64,
	"drone_type":      1,
	"distance":        4,
	"flight_time":     4,
	"max_altitude":    4,
	"video_time":      4,
	"flight_at":       8,
	"time_zone":       4,
	"start_latitude":  4,
	"start_longitude": 4,
	"image_count":     2,
	"video_count":     2,
	"firmware_size":   2,

	// flight dynamics
	"current_time":         4,
	"drone_latitude":       4,
	"drone_longitude":      4,
	"drone_altitude":       4,
	"x_speed":              4,
	"y_speed":              4,
	"z_speed":              4,
	"gimbal_pitch":         4,
	"gimbal_roll":          4,
	"gimbal_yaw":           4,
	"drone_pitch":          4,
	"drone_roll":           4,
	"drone_yaw":            4,
	"m_left_horizontal":    2,
	"m_left_vertical":      2,
	"m_right_horizontal":   2,
	"m_right_vertical":     2,
	"rc_mode_state":        1,
	"offline_duration":     4,
	"rc_button_state":      1,
	"phone_heading":        8,
	"radar_info_timestamp": 8,
	"front_radar_info":     4,
	"rear_radar_info":      4,
	"left_radar_info":      4,
	"right_radar_info":     4,
	"top_radar_info":       4,
	"bottom_radar_info":    4,
	"param_1":              4,
	"param_2":              4,
	"param_3":              4,
	"param_4":              4,
	"param_5":              4,

	// full-record extras
	"flight_mode":                       1,
	"camera_mode":                       1,
	"gps_signal_level":                  1,
	"rcRSSI":                            1,
	"m_mode":                            1,
	"home_latitude":                     4,
	"home_longitude":                    4,
	"distance_from_home":                4,
	"current_journey":                   4,
	"drone_warning":                     4,
	"drone_ext_warning":                 4,
	"gimbal_warning":                    4,
	"time_left":                         4,
	"back_time":                         4,
	"satellite_count":                   1,
	"design_volume":                     4,
	"full_charge_volume":                4,
	"current_electricity":               4,
	"current_voltage":                   4,
	"current_current":                   4,
	"remain_power_percent":              1,
	"battery_temperature":               4,
	"battery_state":                     1,
	"number_of_discharges":              4,
	"cell_count":                        1,
	"cell_voltages":                     32,
	"vision_warning":                    4,
	"vision_ext_warning":                4,
	"vision_error_code":                 4,
	"max_flight_altitude":               4,
	"go_home_altitude":                  4,
	"beginner_mode_enable":              1,
	"low_battery_warning_threshold":     1,
	"serious_battery_warning_threshold": 1,
	"max_flight_radius":                 4,
	"max_flight_horizontal_speed":       4,
	"obstacle_avoidance_enabled":        1,
	"radar_enabled":                     1,
	"max_error":                         4,

	// media
	"media_filename":  64,
	"media_timestamp": 8,
	"latitude":        4,
	"longitude":       4,
	"duration":        4,
}

// overrides replaces the width-derived default encoding for a field.
var overrides = map[string]Encoding{
	"flight_time":          EncodingUint,
	"time_zone":            EncodingUint,
	"media_timestamp":      EncodingUint,
	"current_time":         EncodingUint,
	"duration":             EncodingUint,
	"offline_duration":     EncodingUint,
	"phone_heading":        EncodingFloat,
	"radar_info_timestamp": EncodingFloat,
	"back_time":            EncodingUint,
	"design_volume":        EncodingUint,
	"full_charge_volume":   EncodingUint,
	"max_error":            EncodingUint,
	"number_of_discharges": EncodingUint,
	"drone_warning":        EncodingHex,
	"drone_ext_warning":    EncodingHex,
	"gimbal_warning":       EncodingHex,
	"vision_warning":       EncodingHex,
	"vision_ext_warning":   EncodingHex,
	"cell_voltages":        EncodingFloatArray,
}

var catalog = buildCatalog()

func buildCatalog() map[string]Field {
	out := make(map[string]Field, len(widths)+1)
	for name, width := range widths {
		enc, ok := overrides[name]
		if !ok {
			enc = defaultEncoding(width)
		}
		out[name] = Field{Name: name, Width: width, Encoding: enc}
	}
	out[FieldFirmwareInfo] = Field{
		Name:      FieldFirmwareInfo,
		Encoding:  EncodingDynamic,
		SizeField: FieldFirmwareSize,
	}
	return out
}

// defaultEncoding derives the encoding implied by a width alone.
func defaultEncoding(width int) Encoding {
	switch width {
	case 1, 2, 8:
		return EncodingUint
	case 4:
		return EncodingFloat
	default:
		return EncodingString
	}
}

// LookupField returns the catalog entry for name.
func LookupField(name string) (Field, bool) {
	f, ok := catalog[name]
	return f, ok
}
