package autelfr

import "testing"

func TestDefaultEncoding(t *testing.T) {
	tests := []struct {
		width int
		want  Encoding
	}{
		{1, EncodingUint},
		{2, EncodingUint},
		{4, EncodingFloat},
		{8, EncodingUint},
		{18, EncodingString},
		{64, EncodingString},
	}
	for _, tc := range tests {
		if got := defaultEncoding(tc.width); got != tc.want {
			t.Fatalf("defaultEncoding(%d) = %s, want %s", tc.width, got, tc.want)
		}
	}
}

func TestCatalogOverrides(t *testing.T) {
	tests := []struct {
		name  string
		width int
		enc   Encoding
	}{
		{"current_time", 4, EncodingUint},
		{"flight_time", 4, EncodingUint},
		{"media_timestamp", 8, EncodingUint},
		{"phone_heading", 8, EncodingFloat},
		{"radar_info_timestamp", 8, EncodingFloat},
		{"drone_warning", 4, EncodingHex},
		{"vision_ext_warning", 4, EncodingHex},
		{"cell_voltages", 32, EncodingFloatArray},
		{"drone_altitude", 4, EncodingFloat},
		{"flight_at", 8, EncodingUint},
		{"aircraft_sn", 18, EncodingString},
		{"obstacle_avoidance_enabled", 1, EncodingUint},
		{"radar_enabled", 1, EncodingUint},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, ok := LookupField(tc.name)
			if !ok {
				t.Fatalf("LookupField(%q) not found", tc.name)
			}
			if f.Width != tc.width {
				t.Fatalf("Width = %d, want %d", f.Width, tc.width)
			}
			if f.Encoding != tc.enc {
				t.Fatalf("Encoding = %s, want %s", f.Encoding, tc.enc)
			}
		})
	}
}

func TestFirmwareInfoIsDynamic(t *testing.T) {
	f, ok := LookupField(FieldFirmwareInfo)
	if !ok {
		t.Fatalf("firmware_info missing from catalog")
	}
	if f.Encoding != EncodingDynamic || f.SizeField != FieldFirmwareSize {
		t.Fatalf("firmware_info = %+v, want dynamic sized by firmware_size", f)
	}
	head, _ := SchemaFor(KindHead)
	if head.Dynamic == nil || head.Dynamic.Name != FieldFirmwareInfo {
		t.Fatalf("head schema dynamic = %+v, want firmware_info", head.Dynamic)
	}
	for _, f := range head.Fields {
		if f.Name == FieldFirmwareInfo {
			t.Fatalf("firmware_info listed among static head fields")
		}
	}
}

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindHead, 157},
		{KindVideo, 84},
		{KindImage, 80},
		{KindInBase, 106},
		{KindOutBase, 114},
	}
	for _, tc := range tests {
		if got := RecordSize(tc.kind); got != tc.want {
			t.Fatalf("RecordSize(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
	if RecordSize(KindOutFull) <= RecordSize(KindOutBase) {
		t.Fatalf("out_full (%d) should be larger than out_base (%d)", RecordSize(KindOutFull), RecordSize(KindOutBase))
	}
	if RecordSize(KindInFull) <= RecordSize(KindInBase) {
		t.Fatalf("in_full (%d) should be larger than in_base (%d)", RecordSize(KindInFull), RecordSize(KindInBase))
	}
}

func TestTagMapIsBijective(t *testing.T) {
	if err := validateTagMap(); err != nil {
		t.Fatalf("validateTagMap: %v", err)
	}
	want := map[uint8]Kind{0: KindOutFull, 1: KindOutBase, 2: KindInFull, 3: KindInBase, 14: KindImage, 15: KindVideo}
	for tag, kind := range want {
		got, ok := KindForTag(tag)
		if !ok || got != kind {
			t.Fatalf("KindForTag(%d) = %s, %v, want %s", tag, got, ok, kind)
		}
		back, ok := TagForKind(kind)
		if !ok || back != tag {
			t.Fatalf("TagForKind(%s) = %d, %v, want %d", kind, back, ok, tag)
		}
	}
	if _, ok := TagForKind(KindHead); ok {
		t.Fatalf("head must not have a tag")
	}
	if _, ok := KindForTag(6); ok {
		t.Fatalf("tag 6 must not resolve")
	}
}

func TestNewSchemaRejectsBadLayouts(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"unknown field", []string{"current_time", "warp_factor"}},
		{"dynamic not last", []string{"firmware_size", "firmware_info", "drone_type"}},
		{"dynamic without size", []string{"drone_type", "firmware_info"}},
		{"dynamic first", []string{"firmware_info"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSchema(KindHead, tc.names); err == nil {
				t.Fatalf("expected error for %v", tc.names)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("telemetry"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
