package autelfr

import "fmt"

// Scan decodes the head record to learn its size and then walks every tagged
// record that follows it, building one track per kind.
func Scan(buf []byte) (Tracks, error) {
	_, end, err := Decode(buf, KindHead, HeadOffset)
	if err != nil {
		return nil, fmt.Errorf("decode head: %w", err)
	}
	return scanFrom(buf, end)
}

// scanFrom walks tagged records starting at off, the first byte after the
// head. Sizes come from the schema registry, so a wrong catalog width shows
// up here as an unknown tag further along the file. There is no attempt to
// resynchronize.
func scanFrom(buf []byte, off int) (Tracks, error) {
	tracks := newTracks(off - HeadOffset)
	tracks[KindHead].Offsets = append(tracks[KindHead].Offsets, HeadOffset)
	for off < len(buf) {
		tag := buf[off]
		kind, ok := tagKinds[tag]
		if !ok {
			return nil, newUnknownTagError(buf, tag, off)
		}
		track := tracks[kind]
		track.Offsets = append(track.Offsets, off)
		off += track.Size + 1
	}
	return tracks, nil
}
