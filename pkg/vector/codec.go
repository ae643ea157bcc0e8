package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	blobMagic   = "LRVX"
	blobVersion = uint16(1)
)

// EncodeVectors serializes rows of equal dimension into the index blob
// format: magic, version, dimension, row count, then little-endian float32
// values row by row.
func EncodeVectors(dims int, rows [][]float32) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(blobMagic) + 2 + 4 + 8 + len(rows)*dims*4)

	buf.WriteString(blobMagic)
	_ = binary.Write(&buf, binary.LittleEndian, blobVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dims))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(rows)))

	scratch := make([]byte, 4)
	for i, row := range rows {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: row %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(row), dims)
		}
		for _, f := range row {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(f))
			buf.Write(scratch)
		}
	}

	return buf.Bytes(), nil
}

// DecodeVectors parses a blob written by EncodeVectors.
func DecodeVectors(data []byte) (int, [][]float32, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(blobMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != blobMagic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrCorruptBlob)
	}

	var (
		version uint16
		dims    uint32
		count   uint64
	)
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, nil, fmt.Errorf("%w: reading version: %v", ErrCorruptBlob, err)
	}
	if version != blobVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptBlob, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return 0, nil, fmt.Errorf("%w: reading dimensions: %v", ErrCorruptBlob, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, fmt.Errorf("%w: reading count: %v", ErrCorruptBlob, err)
	}

	want := uint64(dims) * count * 4
	if uint64(r.Len()) != want {
		return 0, nil, fmt.Errorf("%w: payload is %d bytes, header declares %d", ErrCorruptBlob, r.Len(), want)
	}

	payload := data[len(data)-r.Len():]
	rows := make([][]float32, count)
	for i := range rows {
		row := make([]float32, dims)
		for j := range row {
			off := (i*int(dims) + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		}
		rows[i] = row
	}

	return int(dims), rows, nil
}

// SquaredL2 returns the squared Euclidean distance between a and b, which
// must have equal length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
