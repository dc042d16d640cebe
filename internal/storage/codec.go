package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// codecVersion is stored with every row so older encodings can be rejected.
const codecVersion = 1

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
		}
		return encoder
	},
}

// encodeFloats packs values as little-endian IEEE-754 bits and compresses
// them. Bit patterns are preserved exactly, so a decoded chain is
// bit-identical to the one that was stored.
func encodeFloats(values []float64) []byte {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	encoder := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)
	return encoder.EncodeAll(raw, nil)
}

func decodeFloats(data []byte, want int) ([]float64, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	if len(raw) != 8*want {
		return nil, fmt.Errorf("decoded %d bytes, expected %d values", len(raw), want)
	}
	out := make([]float64, want)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return out, nil
}

func flatten(samples [][]float64, width int) []float64 {
	out := make([]float64, 0, len(samples)*width)
	for _, s := range samples {
		out = append(out, s...)
	}
	return out
}

func unflatten(flat []float64, width int) [][]float64 {
	n := len(flat) / width
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, width)
		copy(row, flat[i*width:(i+1)*width])
		out[i] = row
	}
	return out
}
