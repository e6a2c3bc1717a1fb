package shtc3

// FrameSize is the length of a measurement response: two big-endian words,
// each followed by its checksum.
const FrameSize = 6

// CRC8 computes the checksum used by the sensor: polynomial 0x31,
// initial value 0xFF, no reflection, no final XOR.
func CRC8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Sample is one validated reading.
type Sample struct {
	TemperatureC float64
	HumidityPct  float64
}

// Decode validates both checksums of a temperature-first frame and converts
// the raw words. No conversion happens unless both checksums match.
func Decode(frame [FrameSize]byte) (Sample, error) {
	if got, want := frame[2], CRC8(frame[0:2]); got != want {
		return Sample{}, &IntegrityError{Frame: frame, Word: 0, Want: want, Got: got}
	}
	if got, want := frame[5], CRC8(frame[3:5]); got != want {
		return Sample{}, &IntegrityError{Frame: frame, Word: 1, Want: want, Got: got}
	}

	rawT := uint16(frame[0])<<8 | uint16(frame[1])
	rawH := uint16(frame[3])<<8 | uint16(frame[4])
	return Sample{
		TemperatureC: -45.0 + 175.0*(float64(rawT)/65535.0),
		HumidityPct:  100.0 * (float64(rawH) / 65535.0),
	}, nil
}

// Encode builds the frame a sensor would return for the given raw words.
func Encode(rawT, rawH uint16) [FrameSize]byte {
	var f [FrameSize]byte
	f[0], f[1] = byte(rawT>>8), byte(rawT)
	f[2] = CRC8(f[0:2])
	f[3], f[4] = byte(rawH>>8), byte(rawH)
	f[5] = CRC8(f[3:5])
	return f
}
