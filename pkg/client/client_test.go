package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/api"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/client"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/sse"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ = Describe("Client", func() {
	var (
		srv      *httptest.Server
		c        *client.Client
		ctx      context.Context
		lastReq  *http.Request
		uploaded string
	)

	BeforeEach(func() {
		ctx = context.Background()
		uploaded = ""

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/retrieve", func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			writeJSON(w, http.StatusOK, api.RetrieveResponse{
				Query:   r.URL.Query().Get("query"),
				K:       2,
				Results: []retrieval.Result{{Text: "hit", Source: "a.txt"}},
				Sources: []string{"a.txt"},
			})
		})
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, api.HealthResponse{
				Status: "ok",
				Phase:  indexsync.PhaseNoChange,
				Stats:  indexstate.Stats{IndexedDocuments: 1, TotalChunks: 2, IndexSize: 2},
			})
		})
		mux.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, indexstate.Stats{IndexedDocuments: 1, TotalChunks: 2, IndexSize: 2})
		})
		mux.HandleFunc("POST /v1/reindex", func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			if r.URL.Query().Get("force") == "true" {
				writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "embedding provider failure"})
				return
			}
			writeJSON(w, http.StatusOK, indexsync.Result{PassID: "p1", Phase: indexsync.PhaseIncremental})
		})
		mux.HandleFunc("POST /v1/upload", func(w http.ResponseWriter, r *http.Request) {
			f, header, err := r.FormFile("file")
			if err != nil {
				writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
				return
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			uploaded = string(data)
			writeJSON(w, http.StatusCreated, upload.Result{Filename: header.Filename, Bytes: int64(len(data))})
		})
		mux.HandleFunc("GET /v1/events", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_ = sse.WriteComment(w, "connected")
			for _, id := range []string{"evt_1", "evt_2"} {
				data, _ := json.Marshal(eventstream.IndexSyncedEvent{
					EventType: eventstream.EventTypeIndexSynced,
					EventID:   id,
					Pass:      eventstream.SyncPassMeta{Phase: "incremental_update"},
				})
				_ = sse.Write(w, sse.Event{ID: id, Type: eventstream.EventTypeIndexSynced, Data: string(data)})
				_ = sse.Write(w, sse.Event{Type: "other", Data: "ignored"})
			}
		})
		srv = httptest.NewServer(mux)

		var err error
		c, err = client.New(srv.URL, srv.Client())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		srv.Close()
	})

	It("streams sync events until the server closes the stream", func() {
		var ids []string
		err := c.Events(ctx, func(ev *eventstream.IndexSyncedEvent) error {
			ids = append(ids, ev.EventID)
			Expect(ev.Pass.Phase).To(Equal("incremental_update"))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"evt_1", "evt_2"}))
	})

	It("stops streaming when the callback fails", func() {
		stop := errors.New("enough")
		calls := 0
		err := c.Events(ctx, func(*eventstream.IndexSyncedEvent) error {
			calls++
			return stop
		})
		Expect(err).To(MatchError(stop))
		Expect(calls).To(Equal(1))
	})

	It("reports a server without an event stream", func() {
		bare := httptest.NewServer(http.NotFoundHandler())
		defer bare.Close()

		other, err := client.New(bare.URL, nil)
		Expect(err).NotTo(HaveOccurred())

		err = other.Events(ctx, func(*eventstream.IndexSyncedEvent) error { return nil })
		var se *client.StatusError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("rejects targets without scheme or host", func() {
		_, err := client.New("localhost", nil)
		Expect(err).To(HaveOccurred())
	})

	It("retrieves with query and k", func() {
		out, err := c.Retrieve(ctx, "what is up", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Query).To(Equal("what is up"))
		Expect(out.Results).To(HaveLen(1))
		Expect(lastReq.URL.Query().Get("k")).To(Equal("2"))
	})

	It("omits k when not positive", func() {
		_, err := c.Retrieve(ctx, "q", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(lastReq.URL.Query().Has("k")).To(BeFalse())
	})

	It("reads health and stats", func() {
		health, err := c.Health(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(health.Phase).To(Equal(indexsync.PhaseNoChange))

		stats, err := c.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.TotalChunks).To(Equal(2))
	})

	It("reindexes and surfaces API errors", func() {
		res, err := c.Reindex(ctx, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Phase).To(Equal(indexsync.PhaseIncremental))

		_, err = c.Reindex(ctx, true)
		Expect(err).To(MatchError(ContainSubstring("embedding provider failure")))
		Expect(client.IsUnavailable(err)).To(BeTrue())
	})

	It("uploads a file as multipart form data", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "notes.md")
		Expect(os.WriteFile(path, []byte("# notes"), 0o644)).To(Succeed())

		res, err := c.UploadFile(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Filename).To(Equal("notes.md"))
		Expect(uploaded).To(Equal("# notes"))
	})

	It("refuses unsupported files without contacting the server", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "image.png")
		Expect(os.WriteFile(path, []byte("png"), 0o644)).To(Succeed())

		_, err := c.UploadFile(ctx, path)
		Expect(err).To(MatchError(upload.ErrUnsupportedType))
		Expect(uploaded).To(BeEmpty())
	})

	It("reports connection failures", func() {
		srv.Close()
		_, err := c.Stats(ctx)
		Expect(err).To(MatchError(ContainSubstring("failed to connect")))
	})
})
