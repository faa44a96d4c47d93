package ml

import "github.com/x448/float16"

// FP16 wraps github.com/x448/float16, the teacher's own FP16 dependency, to
// give it the same Float32/Encode shape as the other numeric elements here.
type FP16 uint16

// Float32 dequantizes one FP16 value.
func (b FP16) Float32() float32 {
	return float16.Frombits(uint16(b)).Float32()
}

// EncodeFP16 quantizes a float32 to the nearest representable FP16 value.
func EncodeFP16(f float32) FP16 {
	return FP16(float16.Fromfloat32(f).Bits())
}
