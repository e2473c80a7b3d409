package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeSamples packs a float64 buffer into a little-endian blob.
func encodeSamples(samples []float64) []byte {
	out := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

// decodeSamples unpacks a little-endian blob into exactly count samples.
func decodeSamples(blob []byte, count int) ([]float64, error) {
	if len(blob) != 8*count {
		return nil, fmt.Errorf("sample blob is %d bytes, expected %d", len(blob), 8*count)
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return out, nil
}
