package linucb

import (
	"encoding/binary"
	"math"

	"github.com/catengine/cat/internal/domain"
)

// BlobSize is the exact serialized size in bytes: (2*D^2 + 2*D) * 8 + 4,
// sections in the order A, b, AInv, theta, observation count (§4.3, §6).
const BlobSize = (2*D*D+2*D)*8 + 4

// Marshal serializes the model to the fixed-width little-endian binary
// format: A (D*D doubles), b (D doubles), AInv (D*D doubles), theta
// (D doubles), then a 32-bit signed observation count. Round-tripping via
// Unmarshal is bit-exact for every valid model.
func (m *Model) Marshal() []byte {
	buf := make([]byte, BlobSize)
	off := 0
	off = writeMatrix(buf, off, m.A)
	off = writeVector(buf, off, m.B)
	off = writeMatrix(buf, off, m.AInv)
	off = writeVector(buf, off, m.Theta)
	binary.LittleEndian.PutUint32(buf[off:], uint32(m.N))
	return buf
}

// Unmarshal parses a model from its binary form. Returns
// domain.ErrCorruptModelBlob if the buffer is the wrong length.
func Unmarshal(blob []byte) (*Model, error) {
	if len(blob) != BlobSize {
		return nil, domain.ErrCorruptModelBlob
	}
	m := &Model{}
	off := 0
	off = readMatrix(blob, off, &m.A)
	off = readVector(blob, off, &m.B)
	off = readMatrix(blob, off, &m.AInv)
	off = readVector(blob, off, &m.Theta)
	m.N = int32(binary.LittleEndian.Uint32(blob[off:]))
	return m, nil
}

func writeMatrix(buf []byte, off int, m [D][D]float64) int {
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m[i][j]))
			off += 8
		}
	}
	return off
}

func writeVector(buf []byte, off int, v [D]float64) int {
	for i := 0; i < D; i++ {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v[i]))
		off += 8
	}
	return off
}

func readMatrix(buf []byte, off int, m *[D][D]float64) int {
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			m[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
			off += 8
		}
	}
	return off
}

func readVector(buf []byte, off int, v *[D]float64) int {
	for i := 0; i < D; i++ {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	return off
}

// MarshalContext serializes a 15-D context vector to 120 bytes of
// little-endian doubles (§6), in the canonical feature order of §4.4.
func MarshalContext(x Context) []byte {
	buf := make([]byte, D*8)
	writeVector(buf, 0, [D]float64(x))
	return buf
}

// UnmarshalContext parses a 120-byte context vector. Returns
// domain.ErrInvalidContext if the buffer is the wrong length.
func UnmarshalContext(blob []byte) (Context, error) {
	var x Context
	if len(blob) != D*8 {
		return x, domain.ErrInvalidContext
	}
	readVector(blob, 0, (*[D]float64)(&x))
	return x, nil
}
