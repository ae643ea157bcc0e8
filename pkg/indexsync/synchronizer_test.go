package indexsync_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/ledger"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/snapshot"
	testutils "github.com/H0NEYP0T-466/lettaXrag/pkg/utils/test"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector/flat"
)

var _ = Describe("Synchronizer", func() {
	var (
		ctx        context.Context
		tmpDir     string
		dataDir    string
		storageDir string
		logPath    string
		embedder   *testutils.MockEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "indexsync-test-*")
		Expect(err).NotTo(HaveOccurred())
		dataDir = filepath.Join(tmpDir, "data")
		storageDir = filepath.Join(tmpDir, "storage")
		logPath = filepath.Join(dataDir, "chat_history.txt")
		Expect(os.MkdirAll(dataDir, 0o755)).To(Succeed())
		embedder = testutils.NewMockEmbedder()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	write := func(name, content string) string {
		path, err := testutils.WriteFile(dataDir, name, content)
		Expect(err).NotTo(HaveOccurred())
		return path
	}

	Describe("New", func() {
		It("starts cold with an empty state", func() {
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			Expect(s.Phase()).To(Equal(indexsync.PhaseColdStart))
			Expect(s.Stats().TotalChunks).To(Equal(0))
		})

		It("rejects an invalid chunk window", func() {
			_, err := indexsync.New(&indexsync.Config{
				DataDir:      dataDir,
				ChunkSize:    100,
				ChunkOverlap: 100,
				Embedder:     embedder,
				IndexFactory: flat.NewFactory(),
				Store:        snapshot.New(storageDir, nil),
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("full rebuild", func() {
		It("indexes an empty folder as an empty state", func() {
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseFullRebuild))
			Expect(res.Chunks).To(Equal(0))

			stats := s.Stats()
			Expect(stats.IndexedDocuments).To(Equal(0))
			Expect(stats.TotalChunks).To(Equal(0))
			Expect(stats.IndexSize).To(Equal(0))
			Expect(snapshot.New(storageDir, nil).Exists()).To(BeTrue())
		})

		It("chunks a 1200-word file into three overlapping windows", func() {
			write("long.txt", testutils.Words("w", 1200))
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Embedded).To(Equal(3))

			stats := s.Stats()
			Expect(stats.IndexedDocuments).To(Equal(1))
			Expect(stats.TotalChunks).To(Equal(3))
			Expect(stats.IndexSize).To(Equal(3))

			rows := records(s)
			Expect(strings.Fields(rows[0].Chunk)[0]).To(Equal("w0"))
			Expect(strings.Fields(rows[1].Chunk)[0]).To(Equal("w400"))
			Expect(strings.Fields(rows[2].Chunk)[0]).To(Equal("w800"))
			for i, r := range rows {
				Expect(r.Meta.ChunkID).To(Equal(i))
				Expect(r.Meta.Source).To(Equal("long.txt"))
			}
		})

		It("records zero-text and unextractable files in the ledger", func() {
			empty := write("empty.txt", "   \n")
			broken := write("broken.pdf", "not a pdf")
			write("ok.md", "some words")

			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Stats().TotalChunks).To(Equal(1))

			l, err := ledger.Load(filepath.Join(storageDir, snapshot.LedgerFile))
			Expect(err).NotTo(HaveOccurred())
			Expect(l).To(HaveKey(empty))
			Expect(l).To(HaveKey(broken))

			embedder.Reset()
			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseNoChange))
			Expect(embedder.Embedded()).To(BeEmpty())
		})

		It("rebuilds from scratch when forced", func() {
			write("a.txt", "alpha")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			embedder.Reset()
			res, err := s.Sync(ctx, indexsync.Options{ForceRebuild: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseFullRebuild))
			Expect(embedder.Embedded()).To(Equal([]string{"alpha"}))
			Expect(s.Stats().TotalChunks).To(Equal(1))
		})
	})

	Describe("steady state", func() {
		It("does nothing when no file changed", func() {
			write("a.txt", "alpha")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			embedder.Reset()
			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseNoChange))
			Expect(s.Phase()).To(Equal(indexsync.PhaseNoChange))
			Expect(embedder.BatchCalls()).To(Equal(0))
		})

		It("restores the snapshot after a restart without embedding", func() {
			write("a.txt", testutils.Words("a", 700))
			first := newSynchronizer(dataDir, storageDir, "", embedder)
			_, err := first.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			before := records(first)
			Expect(first.Close()).To(Succeed())

			embedder.Reset()
			second := newSynchronizer(dataDir, storageDir, "", embedder)
			defer second.Close()

			res, err := second.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseNoChange))
			Expect(embedder.Embedded()).To(BeEmpty())
			Expect(records(second)).To(Equal(before))
		})
	})

	Describe("incremental update", func() {
		It("matches a full rebuild of the same folder", func() {
			a := write("a.txt", testutils.Words("a", 600))
			b := write("b.md", testutils.Words("b", 300))
			write(filepath.Join("sub", "c.txt"), testutils.Words("c", 50))

			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(os.WriteFile(a, []byte(testutils.Words("z", 900)), 0o600)).To(Succeed())
			Expect(os.Remove(b)).To(Succeed())
			d := write("d.txt", testutils.Words("d", 20))

			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))
			Expect(res.New).To(Equal([]string{d}))
			Expect(res.Modified).To(Equal([]string{a}))
			Expect(res.Deleted).To(Equal([]string{b}))

			full := newSynchronizer(dataDir, filepath.Join(tmpDir, "storage-full"), "", testutils.NewMockEmbedder())
			defer full.Close()
			_, err = full.Sync(ctx, indexsync.Options{ForceRebuild: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(records(s)).To(ConsistOf(records(full)))
			Expect(s.Stats()).To(Equal(full.Stats()))
		})

		It("removes a deleted file without embedding anything", func() {
			write("a.txt", "alpha words")
			b := write("b.txt", "beta words")

			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Stats().TotalChunks).To(Equal(2))

			var keptBits []uint32
			for _, r := range records(s) {
				if r.Chunk == "alpha words" {
					keptBits = float32Bits(r.Embedding)
				}
			}
			Expect(keptBits).NotTo(BeEmpty())

			Expect(os.Remove(b)).To(Succeed())
			embedder.Reset()

			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Deleted).To(Equal([]string{b}))
			Expect(res.Embedded).To(Equal(0))
			Expect(embedder.Embedded()).To(BeEmpty())

			rows := records(s)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Chunk).To(Equal("alpha words"))
			Expect(float32Bits(rows[0].Embedding)).To(Equal(keptBits))
		})

		It("does not duplicate chunks when the ledger is lost", func() {
			write("a.txt", "alpha words")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			Expect(os.Remove(filepath.Join(storageDir, snapshot.LedgerFile))).To(Succeed())

			restarted := newSynchronizer(dataDir, storageDir, "", embedder)
			defer restarted.Close()
			res, err := restarted.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))
			Expect(restarted.Stats().TotalChunks).To(Equal(1))
		})

		It("treats a garbled ledger as empty without duplicating chunks", func() {
			a := write("a.txt", "alpha words")
			write("b.txt", "beta words")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			ledgerPath := filepath.Join(storageDir, snapshot.LedgerFile)
			Expect(os.WriteFile(ledgerPath, []byte("{"), 0o644)).To(Succeed())

			restarted := newSynchronizer(dataDir, storageDir, "", embedder)
			defer restarted.Close()
			res, err := restarted.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))
			Expect(res.New).To(HaveLen(2))

			rows := records(restarted)
			Expect(rows).To(HaveLen(2))
			Expect([]string{rows[0].Chunk, rows[1].Chunk}).To(ConsistOf("alpha words", "beta words"))

			repaired, err := ledger.Load(ledgerPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(HaveKey(a))
			Expect(repaired).To(HaveLen(2))
		})

		It("falls back to a full rebuild when the snapshot is corrupt", func() {
			write("a.txt", "alpha words")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			Expect(os.WriteFile(filepath.Join(storageDir, snapshot.ChunksFile), []byte("garbage"), 0o644)).To(Succeed())

			restarted := newSynchronizer(dataDir, storageDir, "", embedder)
			defer restarted.Close()
			res, err := restarted.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseFullRebuild))
			Expect(restarted.Stats().TotalChunks).To(Equal(1))
		})
	})

	Describe("embedding failures", func() {
		It("keeps the committed state and retries on the next pass", func() {
			write("a.txt", "alpha words")
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			before := records(s)

			write("b.txt", "beta words")
			embedder.SetFailing(true)

			_, err = s.Sync(ctx, indexsync.Options{})
			Expect(err).To(MatchError(indexsync.ErrEmbeddingProvider))
			Expect(records(s)).To(Equal(before))
			Expect(s.Phase()).To(Equal(indexsync.PhaseFullRebuild))

			embedder.SetFailing(false)
			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))
			Expect(s.Stats().TotalChunks).To(Equal(2))
		})

		It("leaves an empty state when the first pass fails", func() {
			write("a.txt", "alpha words")
			embedder.SetFailing(true)
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			defer s.Close()

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).To(MatchError(indexsync.ErrEmbeddingProvider))
			Expect(s.Phase()).To(Equal(indexsync.PhaseColdStart))
			Expect(s.Stats().TotalChunks).To(Equal(0))
			Expect(snapshot.New(storageDir, nil).Exists()).To(BeFalse())
		})
	})

	Describe("append-only log", func() {
		It("is indexed on a full rebuild and only rechecked on a cold pass", func() {
			write("chat_history.txt", "User: hello\nAssistant: hi")
			s := newSynchronizer(dataDir, storageDir, logPath, embedder)
			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Stats().IndexedDocuments).To(Equal(1))

			write("chat_history.txt", "User: hello\nAssistant: hi\nUser: more")
			embedder.Reset()

			res, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseNoChange))
			Expect(embedder.Embedded()).To(BeEmpty())
			Expect(s.Close()).To(Succeed())

			restarted := newSynchronizer(dataDir, storageDir, logPath, embedder)
			defer restarted.Close()
			res, err = restarted.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))
			Expect(res.LogChanged).To(BeTrue())
			Expect(embedder.Embedded()).To(Equal([]string{"User: hello Assistant: hi User: more"}))

			rows := records(restarted)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Meta.FilePath).To(Equal(logPath))
		})
	})

	Describe("concurrency", func() {
		It("folds triggers during a pass into one follow-up pass", func() {
			write("a.txt", "alpha words")
			gated := newGatedEmbedder()
			s := newSynchronizer(dataDir, storageDir, "", gated)
			defer s.Close()

			done := make(chan error)
			go func() {
				_, err := s.Sync(ctx, indexsync.Options{})
				done <- err
			}()

			Eventually(gated.entered).Should(BeClosed())
			write("b.txt", "beta words")
			s.Trigger(ctx)
			s.Trigger(ctx)
			s.Trigger(ctx)
			close(gated.release)

			Eventually(done).Should(Receive(BeNil()))
			Expect(gated.BatchCalls()).To(Equal(2))
			Expect(gated.Embedded()).To(Equal([]string{"alpha words", "beta words"}))
			Expect(s.Phase()).To(Equal(indexsync.PhaseIncremental))
			Expect(s.Stats().TotalChunks).To(Equal(2))
		})

		It("keeps an acquired state's index open until released", func() {
			write("a.txt", "alpha words")
			tracker := &trackingFactory{}
			s := newSynchronizer(dataDir, storageDir, "", embedder, func(c *indexsync.Config) {
				c.IndexFactory = tracker.Factory()
			})
			defer s.Close()

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			held, release := s.Acquire()
			heldIndex, ok := held.Index.(*trackedIndex)
			Expect(ok).To(BeTrue())

			write("b.txt", "beta words")
			_, err = s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			Consistently(heldIndex.closed.Load, 50*time.Millisecond).Should(BeFalse())
			Expect(held.Len()).To(Equal(1))

			release()
			Eventually(heldIndex.closed.Load).Should(BeTrue())
		})

		It("refuses passes after Close", func() {
			s := newSynchronizer(dataDir, storageDir, "", embedder)
			Expect(s.Close()).To(Succeed())

			_, err := s.Sync(ctx, indexsync.Options{})
			Expect(err).To(MatchError(indexsync.ErrClosed))
		})
	})

	Describe("events", func() {
		It("publishes one event per committed pass", func() {
			publisher := &recordingPublisher{}
			write("a.txt", "alpha words")
			s := newSynchronizer(dataDir, storageDir, "", embedder, func(c *indexsync.Config) {
				c.Publisher = publisher
			})
			defer s.Close()

			res, err := s.Sync(ctx, indexsync.Options{Reason: "startup"})
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Sync(ctx, indexsync.Options{})
			Expect(err).NotTo(HaveOccurred())

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeIndexSynced))
			Expect(events[0].Pass.PassID).To(Equal(res.PassID))
			Expect(events[0].Pass.Reason).To(Equal("startup"))
			Expect(events[0].Index.TotalChunks).To(Equal(1))
		})

		It("commits the next pass while a slow backend is still publishing", func() {
			publisher := newBlockingPublisher()
			write("a.txt", "alpha words")
			s := newSynchronizer(dataDir, storageDir, "", embedder, func(c *indexsync.Config) {
				c.Publisher = publisher
			})
			defer s.Close()

			first := make(chan error, 1)
			go func() {
				_, err := s.Sync(ctx, indexsync.Options{Reason: "startup"})
				first <- err
			}()
			Eventually(publisher.entered).Should(BeClosed())

			write("b.txt", "beta words")
			done := make(chan *indexsync.Result, 1)
			go func() {
				defer GinkgoRecover()
				res, err := s.Sync(ctx, indexsync.Options{Reason: "second"})
				Expect(err).NotTo(HaveOccurred())
				done <- res
			}()

			Eventually(s.Stats, 5*time.Second).Should(HaveField("TotalChunks", 2))
			Eventually(s.Phase).Should(Equal(indexsync.PhaseIncremental))
			Consistently(done, 100*time.Millisecond).ShouldNot(Receive())

			close(publisher.release)
			Eventually(first).Should(Receive(BeNil()))
			Eventually(done).Should(Receive(HaveField("Phase", indexsync.PhaseIncremental)))
			Eventually(publisher.Reasons).Should(Equal([]string{"startup", "second"}))
		})
	})
})
