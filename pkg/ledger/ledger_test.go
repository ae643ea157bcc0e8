package ledger_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
)

var _ = Describe("Ledger", func() {
	var (
		tmpDir string
		path   string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ledger-test-*")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(tmpDir, "ledger.json")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns an empty ledger when the file is missing", func() {
		l, err := ledger.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(l).To(BeEmpty())
	})

	It("round trips through disk", func() {
		l := ledger.Ledger{"/data/a.txt": "h1", "/data/b.md": "h2"}
		Expect(l.Save(path)).To(Succeed())

		loaded, err := ledger.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(l))
	})

	It("writes a flat path to hash JSON object", func() {
		Expect(ledger.Ledger{"/data/a.txt": "h1"}.Save(path)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"/data/a.txt": "h1"}`))
	})

	It("reports undecodable content as ErrLedgerIO", func() {
		Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

		l, err := ledger.Load(path)
		Expect(err).To(MatchError(ledger.ErrLedgerIO))
		Expect(l).To(BeEmpty())
	})

	It("treats a JSON null as empty", func() {
		Expect(os.WriteFile(path, []byte("null"), 0o644)).To(Succeed())

		l, err := ledger.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(l).NotTo(BeNil())
		Expect(l).To(BeEmpty())
	})

	It("clones independently and lists sorted paths", func() {
		l := ledger.Ledger{"/b": "2", "/a": "1"}
		c := l.Clone()
		c["/c"] = "3"

		Expect(l).To(HaveLen(2))
		Expect(c.Paths()).To(Equal([]string{"/a", "/b", "/c"}))
	})
})
