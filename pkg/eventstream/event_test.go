package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals IndexSyncedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.IndexSyncedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeIndexSynced,
			EventID:       "evt_123",
			EmittedAt:     now,
			Pass: eventstream.SyncPassMeta{
				PassID:     "pass-1",
				Phase:      "incremental_update",
				Reason:     "watcher",
				StartedAt:  now.Add(-2 * time.Second),
				DurationMs: 2000,
			},
			Changes: eventstream.SyncChangeSet{
				New:     []string{"/data/a.txt"},
				Deleted: []string{"/data/b.md"},
			},
			Index: eventstream.IndexMeta{
				IndexedDocuments: 1,
				TotalChunks:      3,
				Embedded:         3,
			},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("pass"))
		Expect(got).To(HaveKey("changes"))
		Expect(got).To(HaveKey("index"))

		changes, ok := got["changes"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(changes).NotTo(HaveKey("modified"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeIndexSynced).To(Equal("lettarag.index.synced"))
	})
})
