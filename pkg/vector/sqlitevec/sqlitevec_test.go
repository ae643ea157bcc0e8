package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector/flat"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector/sqlitevec"
)

var _ = Describe("sqlitevec.Index", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("errors when dimensions are not specified", func() {
			_, err := sqlitevec.New(sqlitevec.Config{}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("creates an empty index", func() {
			idx, err := sqlitevec.New(sqlitevec.Config{Dimensions: 4}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Count()).To(Equal(0))
			Expect(idx.Close()).To(Succeed())
		})
	})

	It("caps k at MaxK for large indexes", func() {
		idx, err := sqlitevec.New(sqlitevec.Config{Dimensions: 2}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer idx.Close()

		rows := make([][]float32, sqlitevec.MaxK+10)
		for i := range rows {
			rows[i] = []float32{float32(i), 0}
		}
		Expect(idx.Rebuild(ctx, rows)).To(Succeed())

		hits, err := idx.Search(ctx, []float32{0, 0}, len(rows))
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(sqlitevec.MaxK))
		Expect(hits[0].Position).To(Equal(0))
	})

	Context("with stored vectors", func() {
		var idx *sqlitevec.Index

		BeforeEach(func() {
			var err error
			idx, err = sqlitevec.New(sqlitevec.Config{Dimensions: 2}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Rebuild(ctx, [][]float32{{0, 0}, {10, 10}, {1, 1}})).To(Succeed())
		})

		AfterEach(func() {
			Expect(idx.Close()).To(Succeed())
		})

		It("returns positions ordered by squared distance", func() {
			hits, err := idx.Search(ctx, []float32{0, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].Position).To(Equal(0))
			Expect(hits[1].Position).To(Equal(2))
			Expect(hits[1].Distance).To(BeNumerically("~", 2, 1e-4))
			Expect(hits[2].Position).To(Equal(1))
		})

		It("clamps k to the number of rows", func() {
			hits, err := idx.Search(ctx, []float32{0, 0}, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
		})

		It("appends positions after existing rows", func() {
			Expect(idx.Add(ctx, [][]float32{{7, 7}})).To(Succeed())
			Expect(idx.Count()).To(Equal(4))

			hits, err := idx.Search(ctx, []float32{7, 7}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].Position).To(Equal(3))
		})

		It("rejects vectors with the wrong dimension", func() {
			Expect(idx.Add(ctx, [][]float32{{1, 2, 3}})).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("produces the same blob as the flat index", func() {
			blob, err := idx.MarshalBinary()
			Expect(err).NotTo(HaveOccurred())

			f := flat.New()
			Expect(f.UnmarshalBinary(blob)).To(Succeed())
			Expect(f.Count()).To(Equal(3))

			again, err := f.MarshalBinary()
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(blob))
		})
	})
})
