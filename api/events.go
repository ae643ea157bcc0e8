package api

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/sse"
)

const eventBuffer = 16

// handleEvents handles GET /v1/events, streaming every committed sync pass
// as a server-sent event until the client goes away, the subscription ends
// or the server shuts down.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	events, cancel := s.config.Events.Subscribe(eventBuffer)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	keepAlive := s.config.KeepAlive
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if err := sse.WriteComment(w, "connected"); err != nil || w.Flush() != nil {
			return
		}

		for {
			var err error
			select {
			case <-s.done:
				return
			case <-ticker.C:
				err = sse.WriteComment(w, "keep-alive")
			case event, ok := <-events:
				if !ok {
					return
				}
				err = writeEvent(w, event)
			}
			if err != nil {
				s.logger.Warn("writing event stream", "error", err)
				return
			}
			// A failed flush means the client disconnected.
			if err := w.Flush(); err != nil {
				s.logger.Debug("event stream client went away", "error", err)
				return
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, event *eventstream.IndexSyncedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return sse.Write(w, sse.Event{
		ID:   event.EventID,
		Type: event.EventType,
		Data: string(data),
	})
}
