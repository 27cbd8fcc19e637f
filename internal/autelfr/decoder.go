package autelfr

import "fmt"

// Decode reads one record of kind starting at off (the first body byte) and
// returns its fields plus the offset just past the last byte consumed.
func Decode(buf []byte, kind Kind, off int) (Record, int, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, off, fmt.Errorf("decode: unknown record kind %q", kind)
	}
	return DecodeSchema(buf, s, off)
}

// DecodeSchema decodes a record laid out by s. Static fields are read first
// in schema order; the dynamic field, if any, is resolved afterwards from the
// size field already present in the record.
func DecodeSchema(buf []byte, s Schema, off int) (Record, int, error) {
	rec := make(Record, len(s.Fields)+1)
	for _, f := range s.Fields {
		v, err := decodeField(buf, f, off)
		if err != nil {
			return nil, off, &FieldError{Kind: s.Kind, Field: f.Name, Offset: off, Err: err}
		}
		off += f.Width
		if s.Kind.IsFlight() && f.Name == FieldCurrentTime {
			if prev, seen := rec[f.Name]; seen {
				rec[f.Name] = ReconcileTimestamp(prev, v)
				continue
			}
		}
		rec[f.Name] = v
	}
	if s.Dynamic != nil {
		end, err := decodeDynamic(buf, s, rec, off)
		if err != nil {
			return nil, off, err
		}
		off = end
	}
	return rec, off, nil
}

func decodeDynamic(buf []byte, s Schema, rec Record, off int) (int, error) {
	f := *s.Dynamic
	size, ok := rec.Uint(f.SizeField)
	if !ok {
		return off, &FieldError{Kind: s.Kind, Field: f.Name, Offset: off,
			Err: fmt.Errorf("size field %q not decoded", f.SizeField)}
	}
	if size <= 1 {
		return off, &FieldError{Kind: s.Kind, Field: f.Name, Offset: off,
			Err: fmt.Errorf("%w: %d", ErrInvalidFirmwareSize, size)}
	}
	str, err := ReadFixedString(buf, off, int(size))
	if err != nil {
		return off, &FieldError{Kind: s.Kind, Field: f.Name, Offset: off, Err: err}
	}
	rec[f.Name] = StringValue(str)
	return off + int(size), nil
}

// ReconcileTimestamp resolves a repeated current_time within one record by
// keeping the earlier of the two candidates.
func ReconcileTimestamp(existing, candidate Value) Value {
	a, okA := existing.Number()
	b, okB := candidate.Number()
	if !okA || !okB {
		return existing
	}
	if b < a {
		return candidate
	}
	return existing
}

func decodeField(buf []byte, f Field, off int) (Value, error) {
	switch f.Encoding {
	case EncodingUint:
		return decodeUint(buf, f.Width, off)
	case EncodingFloat:
		switch f.Width {
		case 4:
			v, err := ReadF32(buf, off)
			return FloatValue(float64(v)), err
		case 8:
			v, err := ReadF64(buf, off)
			return FloatValue(v), err
		}
	case EncodingHex:
		if f.Width == 4 {
			v, err := ReadU32(buf, off)
			return StringValue(fmt.Sprintf("0x%x", v)), err
		}
	case EncodingFloatArray:
		if _, err := span(buf, off, f.Width); err != nil {
			return Value{}, err
		}
		out := make([]float64, f.Width/4)
		for i := range out {
			v, _ := ReadF32(buf, off+i*4)
			out[i] = float64(v)
		}
		return FloatsValue(out), nil
	case EncodingString:
		v, err := ReadFixedString(buf, off, f.Width)
		return StringValue(v), err
	}
	return Value{}, fmt.Errorf("field %q: no %s decoder for width %d", f.Name, f.Encoding, f.Width)
}

func decodeUint(buf []byte, width, off int) (Value, error) {
	switch width {
	case 1:
		v, err := ReadU8(buf, off)
		return UintValue(uint64(v)), err
	case 2:
		v, err := ReadU16(buf, off)
		return UintValue(uint64(v)), err
	case 4:
		v, err := ReadU32(buf, off)
		return UintValue(uint64(v)), err
	case 8:
		v, err := ReadU64(buf, off)
		return UintValue(v), err
	}
	return Value{}, fmt.Errorf("no integer decoder for width %d", width)
}
