package vector_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

var _ = Describe("vector blob codec", func() {
	It("round trips rows bit-exactly", func() {
		rows := [][]float32{
			{0.1, -2.5, float32(math.Inf(1))},
			{math.SmallestNonzeroFloat32, 0, 42},
		}

		blob, err := vector.EncodeVectors(3, rows)
		Expect(err).NotTo(HaveOccurred())

		dims, decoded, err := vector.DecodeVectors(blob)
		Expect(err).NotTo(HaveOccurred())
		Expect(dims).To(Equal(3))
		Expect(decoded).To(HaveLen(2))
		for i := range rows {
			for j := range rows[i] {
				Expect(math.Float32bits(decoded[i][j])).To(Equal(math.Float32bits(rows[i][j])))
			}
		}
	})

	It("encodes an empty index", func() {
		blob, err := vector.EncodeVectors(0, nil)
		Expect(err).NotTo(HaveOccurred())

		dims, rows, err := vector.DecodeVectors(blob)
		Expect(err).NotTo(HaveOccurred())
		Expect(dims).To(Equal(0))
		Expect(rows).To(BeEmpty())
	})

	It("rejects rows with the wrong dimension", func() {
		_, err := vector.EncodeVectors(2, [][]float32{{1, 2, 3}})
		Expect(err).To(MatchError(vector.ErrDimensionMismatch))
	})

	It("rejects truncated blobs", func() {
		blob, err := vector.EncodeVectors(2, [][]float32{{1, 2}, {3, 4}})
		Expect(err).NotTo(HaveOccurred())

		_, _, err = vector.DecodeVectors(blob[:len(blob)-3])
		Expect(err).To(MatchError(vector.ErrCorruptBlob))
	})

	It("rejects foreign data", func() {
		_, _, err := vector.DecodeVectors([]byte("not a blob"))
		Expect(err).To(MatchError(vector.ErrCorruptBlob))
	})
})

var _ = Describe("SquaredL2", func() {
	It("does not take the square root", func() {
		Expect(vector.SquaredL2([]float32{0, 0}, []float32{3, 4})).To(BeNumerically("==", 25))
	})
})
