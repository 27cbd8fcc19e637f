package flight

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/samples"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func sampleFlight(t *testing.T) Flight {
	t.Helper()
	data, err := samples.Build()
	if err != nil {
		t.Fatalf("samples.Build: %v", err)
	}
	res, err := autelfr.Parse(data, samples.FileName)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return FromResult(res)
}

func TestDistanceTo(t *testing.T) {
	tests := []struct {
		name string
		a, b LatLon
		want float64
	}{
		{name: "same point", a: LatLon{47.5, 19.04}, b: LatLon{47.5, 19.04}, want: 0},
		{name: "one degree of latitude", a: LatLon{0, 0}, b: LatLon{1, 0}, want: 111194.93},
		{name: "one degree of longitude at equator", a: LatLon{0, 0}, b: LatLon{0, 1}, want: 111194.93},
		{name: "quarter meridian", a: LatLon{0, 0}, b: LatLon{90, 0}, want: EarthRadius * math.Pi / 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.DistanceTo(tc.b); !near(got, tc.want, 0.01) {
				t.Fatalf("DistanceTo = %v, want %v", got, tc.want)
			}
			if got := tc.b.DistanceTo(tc.a); !near(got, tc.want, 0.01) {
				t.Fatalf("reverse DistanceTo = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPositionFrom(t *testing.T) {
	origin := LatLon{0, 0}
	tests := []struct {
		name  string
		p     LatLon
		wantX float64
		wantY float64
	}{
		{name: "origin", p: origin},
		{name: "north", p: LatLon{0.001, 0}, wantY: 111.195},
		{name: "south", p: LatLon{-0.001, 0}, wantY: -111.195},
		{name: "east", p: LatLon{0, 0.001}, wantX: 111.195},
		{name: "west", p: LatLon{0, -0.001}, wantX: -111.195},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.p.PositionFrom(origin)
			if !near(got.X, tc.wantX, 0.01) || !near(got.Y, tc.wantY, 0.01) {
				t.Fatalf("PositionFrom = %+v, want {X:%v Y:%v}", got, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestBoundsOf(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("BoundsOf(nil) reported a box")
	}
	box, ok := BoundsOf([]LatLon{{47.2, 19.9}, {48, 19}, {47.5, 20}})
	if !ok {
		t.Fatalf("BoundsOf reported no box")
	}
	if box.South() != 47.2 || box.North() != 48 || box.West() != 19 || box.East() != 20 {
		t.Fatalf("box = %+v", box)
	}
	if c := box.Center(); !near(c.Lat, 47.6, 1e-9) || !near(c.Lon, 19.5, 1e-9) {
		t.Fatalf("Center = %+v", c)
	}
}

func TestOSMURL(t *testing.T) {
	box := GeoBox{SouthWest: LatLon{47, 19}, NorthEast: LatLon{48, 20}}
	want := "https://www.openstreetmap.org/?mlat=47.5&mlon=19.5#map=12/47.5/19.5"
	if got := box.OSMURL(); got != want {
		t.Fatalf("OSMURL = %q, want %q", got, want)
	}
}

func TestFromResultTrack(t *testing.T) {
	f := sampleFlight(t)
	if f.AircraftSN != samples.AircraftSN || f.Filename != samples.FileName {
		t.Fatalf("identity = %q / %q", f.AircraftSN, f.Filename)
	}
	if f.StartTime != time.UnixMilli(int64(samples.FlightAtMs)).UTC() {
		t.Fatalf("StartTime = %v", f.StartTime)
	}
	wantKinds := []autelfr.Kind{autelfr.KindOutFull, autelfr.KindOutBase, autelfr.KindOutFull, autelfr.KindInBase}
	if len(f.Track) != len(wantKinds) {
		t.Fatalf("track has %d items, want %d", len(f.Track), len(wantKinds))
	}
	for i, kind := range wantKinds {
		item := f.Track[i]
		if item.Index != i || item.Kind != kind {
			t.Fatalf("item %d = %s #%d, want %s", i, item.Kind, item.Index, kind)
		}
		if item.OffsetMs != uint64(i*100) {
			t.Fatalf("item %d offset = %d, want %d", i, item.OffsetMs, i*100)
		}
		if want := f.StartTime.Add(time.Duration(i*100) * time.Millisecond); !item.Time.Equal(want) {
			t.Fatalf("item %d time = %v, want %v", i, item.Time, want)
		}
		if !near(item.Drone.Yaw, 90, 1e-4) {
			t.Fatalf("item %d drone yaw = %v, want 90", i, item.Drone.Yaw)
		}
		if item.Gimbal.Pitch != -30 {
			t.Fatalf("item %d gimbal pitch = %v, want -30", i, item.Gimbal.Pitch)
		}
		if item.Speed.X != 1.5 {
			t.Fatalf("item %d x speed = %v, want 1.5", i, item.Speed.X)
		}
	}
	if f.Duration() != 300*time.Millisecond {
		t.Fatalf("Duration = %v", f.Duration())
	}

	indoor := f.Track[3]
	if indoor.Location != nil || indoor.Relative != nil || indoor.DistanceFromHome != nil {
		t.Fatalf("indoor item has outdoor data: %+v", indoor)
	}
	base := f.Track[1]
	if base.Location == nil || base.Relative != nil || base.DistanceFromHome != nil {
		t.Fatalf("out_base item = %+v", base)
	}
	full := f.Track[2]
	if full.Location == nil || full.Relative == nil || full.DistanceFromHome == nil {
		t.Fatalf("out_full item = %+v", full)
	}
	if !near(full.Relative.X, 0, 1e-6) || !near(full.Relative.Y, 222.39, 0.5) {
		t.Fatalf("relative location = %+v, want ~{0 222.39}", *full.Relative)
	}
	if *full.DistanceFromHome != 20 {
		t.Fatalf("distance from home = %v, want 20", *full.DistanceFromHome)
	}
}

func TestFromResultGeometry(t *testing.T) {
	f := sampleFlight(t)
	if got := len(f.Locations()); got != 3 {
		t.Fatalf("Locations = %d, want 3", got)
	}
	if f.Bounds == nil {
		t.Fatalf("Bounds is nil")
	}
	if !near(f.Bounds.South(), samples.StartLat, 1e-5) || !near(f.Bounds.North(), samples.StartLat+0.002, 1e-5) {
		t.Fatalf("latitude bounds = %v..%v", f.Bounds.South(), f.Bounds.North())
	}
	if f.Bounds.West() != f.Bounds.East() || !near(f.Bounds.West(), samples.StartLon, 1e-5) {
		t.Fatalf("longitude bounds = %v..%v", f.Bounds.West(), f.Bounds.East())
	}
	if got := f.PathLength(); !near(got, 222.39, 0.5) {
		t.Fatalf("PathLength = %v, want ~222.39", got)
	}
	if len(f.Media) != 2 || f.Media[0].Kind != autelfr.KindImage || f.Media[1].Kind != autelfr.KindVideo {
		t.Fatalf("media = %+v", f.Media)
	}
	if f.Media[1].DurationMs != 15000 {
		t.Fatalf("video duration = %d", f.Media[1].DurationMs)
	}
}

func TestFromResultHeaderOnly(t *testing.T) {
	data, err := samples.NewBuilder().
		Preamble(autelfr.Magic, autelfr.Version).
		Head(samples.HeadFields(), []byte("2.0.1\x00")).
		Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	res, err := autelfr.Parse(data, "x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := FromResult(res)
	if len(f.Track) != 0 || f.Bounds != nil || f.PathLength() != 0 || f.Duration() != 0 {
		t.Fatalf("empty flight = %+v", f)
	}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if track, ok := decoded["track"].([]any); !ok || len(track) != 0 {
		t.Fatalf("track = %v, want []", decoded["track"])
	}
	if _, ok := decoded["bounds"]; ok {
		t.Fatalf("bounds present for a flight without locations")
	}
}

func TestLocateMedia(t *testing.T) {
	dir := t.TempDir()
	videos := filepath.Join(dir, "videos")
	nested := filepath.Join(videos, "100MEDIA")
	images := filepath.Join(dir, "images")
	for _, d := range []string{nested, images} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	write := func(path string) {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	write(filepath.Join(nested, "max_0001.mp4"))
	write(filepath.Join(images, "IMG_0001.JPG.tmp"))

	tests := []struct {
		name      string
		videos    []SearchPath
		images    []SearchPath
		wantFound int
		wantVideo string
	}{
		{
			name:      "recursive video match",
			videos:    []SearchPath{{Path: videos, Recursive: true}},
			images:    []SearchPath{{Path: images}},
			wantFound: 1,
			wantVideo: filepath.Join(nested, "max_0001.mp4"),
		},
		{
			name:   "flat scan misses nested file",
			videos: []SearchPath{{Path: videos}},
		},
		{
			name:   "glob filters names",
			videos: []SearchPath{{Path: videos, Glob: "*.MOV", Recursive: true}},
		},
		{
			name:   "missing directory is skipped",
			videos: []SearchPath{{Path: filepath.Join(dir, "absent")}},
			images: []SearchPath{{Path: filepath.Join(dir, "absent")}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := sampleFlight(t)
			found, err := f.LocateMedia(tc.videos, tc.images)
			if err != nil {
				t.Fatalf("LocateMedia: %v", err)
			}
			if found != tc.wantFound {
				t.Fatalf("found = %d, want %d", found, tc.wantFound)
			}
			if got := f.Media[1].Path; got != tc.wantVideo {
				t.Fatalf("video path = %q, want %q", got, tc.wantVideo)
			}
			if got := f.Media[0].Path; got != "" {
				t.Fatalf("image path = %q, want empty", got)
			}
		})
	}
}
