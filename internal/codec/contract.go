package codec

import (
	"encoding/binary"

	"gallery-service/internal/models"
)

// ContractTransform holds the arguments of a per-object property write. Position and scale
// are milli-units, rotation is milli-degrees. The contract takes u64 values, so negative
// components travel as their two's-complement bit pattern.
type ContractTransform struct {
	Displayed bool
	Position  [3]uint64
	Rotation  [3]uint64
	Scale     uint64
}

// EncodeContractTransform encodes a scene object for a contract call.
func EncodeContractTransform(obj models.SceneObject) ContractTransform {
	return ContractTransform{
		Displayed: obj.Displayed,
		Position: [3]uint64{
			uint64(ToMilli(obj.Position.X)),
			uint64(ToMilli(obj.Position.Y)),
			uint64(ToMilli(obj.Position.Z)),
		},
		Rotation: [3]uint64{
			uint64(RadiansToMilliDegrees(obj.Rotation.X)),
			uint64(RadiansToMilliDegrees(obj.Rotation.Y)),
			uint64(RadiansToMilliDegrees(obj.Rotation.Z)),
		},
		Scale: uint64(ToMilli(obj.Scale)),
	}
}

// DecodeObjectProperties decodes a BCS Option<ObjectProperties> contract return value:
//
//	u8 option tag (0 none, 1 some)
//	bool displayed
//	vector<u64> position (milli-units)
//	vector<u64> rotation (milli-degrees)
//	u64 scale (milli-units)
//	u64 updated_at (ms)
//
// A none value and a malformed payload both report false.
func DecodeObjectProperties(b []byte) (*models.ParsedObjectProperties, bool) {
	r := &bcsReader{buf: b}
	tag, ok := r.u8()
	if !ok || tag != 1 {
		return nil, false
	}
	displayed, ok := r.boolean()
	if !ok {
		return nil, false
	}
	pos, ok := r.vec3()
	if !ok {
		return nil, false
	}
	rot, ok := r.vec3()
	if !ok {
		return nil, false
	}
	scale, ok := r.u64()
	if !ok {
		return nil, false
	}
	updatedAt, ok := r.u64()
	if !ok || r.remaining() != 0 {
		return nil, false
	}
	return &models.ParsedObjectProperties{
		Displayed: displayed,
		Position: models.Vector3{
			X: FromMilli(int64(pos[0])),
			Y: FromMilli(int64(pos[1])),
			Z: FromMilli(int64(pos[2])),
		},
		Rotation: models.Vector3{
			X: MilliDegreesToRadians(int64(rot[0])),
			Y: MilliDegreesToRadians(int64(rot[1])),
			Z: MilliDegreesToRadians(int64(rot[2])),
		},
		Scale:     FromMilli(int64(scale)),
		UpdatedAt: updatedAt,
	}, true
}

// EncodeObjectProperties produces the BCS layout DecodeObjectProperties reads. A nil
// value encodes as none.
func EncodeObjectProperties(p *models.ParsedObjectProperties) []byte {
	if p == nil {
		return []byte{0}
	}
	t := EncodeContractTransform(models.SceneObject{
		Displayed: p.Displayed,
		Position:  p.Position,
		Rotation:  p.Rotation,
		Scale:     p.Scale,
	})
	out := make([]byte, 0, 2+2*(1+3*8)+2*8)
	out = append(out, 1)
	if t.Displayed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, 3)
	for _, v := range t.Position {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	out = append(out, 3)
	for _, v := range t.Rotation {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	out = binary.LittleEndian.AppendUint64(out, t.Scale)
	out = binary.LittleEndian.AppendUint64(out, p.UpdatedAt)
	return out
}

type bcsReader struct {
	buf []byte
	off int
}

func (r *bcsReader) remaining() int { return len(r.buf) - r.off }

func (r *bcsReader) u8() (byte, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	b := r.buf[r.off]
	r.off++
	return b, true
}

func (r *bcsReader) boolean() (bool, bool) {
	b, ok := r.u8()
	if !ok || b > 1 {
		return false, false
	}
	return b == 1, true
}

func (r *bcsReader) u64() (uint64, bool) {
	if r.remaining() < 8 {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, true
}

func (r *bcsReader) uleb128() (uint64, bool) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, ok := r.u8()
		if !ok {
			return 0, false
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, true
		}
	}
	return 0, false
}

func (r *bcsReader) vec3() ([3]uint64, bool) {
	var out [3]uint64
	n, ok := r.uleb128()
	if !ok || n != 3 {
		return out, false
	}
	for i := range out {
		if out[i], ok = r.u64(); !ok {
			return out, false
		}
	}
	return out, true
}
