package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	embeddingsMagic     = "LREM"
	embeddingsHeaderLen = len(embeddingsMagic) + 8 + 4
)

// writeEmbeddings encodes the matrix as magic, row count (uint64), dimension
// (uint32), then little-endian float32 values row by row.
func writeEmbeddings(w io.Writer, rows [][]float32) error {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, embeddingsHeaderLen)
	copy(header, embeddingsMagic)
	binary.LittleEndian.PutUint64(header[4:], uint64(len(rows)))
	binary.LittleEndian.PutUint32(header[12:], uint32(dims))
	if _, err := bw.Write(header); err != nil {
		return err
	}

	scratch := make([]byte, 4)
	for i, row := range rows {
		if len(row) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(row), dims)
		}
		for _, f := range row {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(f))
			if _, err := bw.Write(scratch); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// readEmbeddings decodes a matrix written by writeEmbeddings. size is the
// byte length of r; the header must account for it exactly before any row
// is allocated.
func readEmbeddings(r io.Reader, size int64) ([][]float32, error) {
	br := bufio.NewReader(r)

	header := make([]byte, embeddingsHeaderLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(header[:4]) != embeddingsMagic {
		return nil, fmt.Errorf("bad magic %q", header[:4])
	}
	n := binary.LittleEndian.Uint64(header[4:])
	dims := binary.LittleEndian.Uint32(header[12:])

	payload := uint64(size - int64(embeddingsHeaderLen))
	switch {
	case n == 0 && payload == 0:
		return [][]float32{}, nil
	case dims == 0:
		return nil, fmt.Errorf("header declares %d rows of zero dimensions", n)
	case n > payload/(uint64(dims)*4) || n*uint64(dims)*4 != payload:
		return nil, fmt.Errorf("header declares %d rows of %d dimensions, file holds %d payload bytes", n, dims, payload)
	}

	rows := make([][]float32, n)
	buf := make([]byte, int(dims)*4)
	for i := range rows {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("reading row %d of %d: %w", i, n, err)
		}
		row := make([]float32, dims)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		rows[i] = row
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after declared rows")
	}
	return rows, nil
}
