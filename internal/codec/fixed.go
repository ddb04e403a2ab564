// Package codec converts scene transforms between floating point and the fixed-point
// integer encodings used for on-chain storage.
//
// Two encodings exist and must not be mixed up:
//   - the persistence encoding (Compress/Decompress) stores rotation as radians*1000;
//   - the contract encoding (EncodeContractTransform/DecodeObjectProperties) stores rotation
//     as degrees*1000, matching the on-chain schema.
package codec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"gallery-service/internal/models"
)

// Scale is the fixed-point factor: three decimal digits.
const Scale = 1000

// ToMilli rounds v*1000 half away from zero.
func ToMilli(v float64) int64 {
	return int64(math.Round(v * Scale))
}

// FromMilli is the inverse of ToMilli.
func FromMilli(m int64) float64 {
	return float64(m) / Scale
}

// RadiansToMilliDegrees converts radians to degree milli-units.
func RadiansToMilliDegrees(rad float64) int64 {
	return ToMilli(mgl64.RadToDeg(rad))
}

// MilliDegreesToRadians converts degree milli-units back to radians.
func MilliDegreesToRadians(m int64) float64 {
	return mgl64.DegToRad(FromMilli(m))
}

func vecToMilli(v models.Vector3) [3]int64 {
	return [3]int64{ToMilli(v.X), ToMilli(v.Y), ToMilli(v.Z)}
}

func vecFromMilli(m [3]int64) models.Vector3 {
	return models.Vector3{X: FromMilli(m[0]), Y: FromMilli(m[1]), Z: FromMilli(m[2])}
}
