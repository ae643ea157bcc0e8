package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexstate"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/retrieval"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness plus the synchronizer phase.
type HealthResponse struct {
	Status string           `json:"status"`
	Phase  indexsync.Phase  `json:"phase"`
	Stats  indexstate.Stats `json:"stats"`
}

// RetrieveResponse contains the chunks nearest to the query, closest first.
type RetrieveResponse struct {
	Query   string             `json:"query"`
	K       int                `json:"k"`
	Results []retrieval.Result `json:"results"`
	Sources []string           `json:"sources"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports the phase and sizes of the committed index.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "ok",
		Phase:  s.config.Indexer.Phase(),
		Stats:  s.config.Indexer.Stats(),
	})
}

// handleStats returns statistics about the committed index.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.config.Indexer.Stats())
}

// handleRetrieve handles GET /v1/retrieve requests.
// Query parameters:
//   - query (required): the text to search for
//   - k (optional): number of chunks to return
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	k := s.config.DefaultTopK
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "k must be a positive integer",
			})
		}
		k = parsed
	}

	results, err := s.config.Searcher.Search(c.Context(), query, k)
	if err != nil {
		s.logger.Error("retrieve failed", "query", query, "error", err)
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(RetrieveResponse{
		Query:   query,
		K:       k,
		Results: results,
		Sources: retrieval.Sources(results),
	})
}

// handleUpload stores the multipart "file" field in the data folder and
// runs an incremental pass.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(ErrorResponse{
			Error: "expected a multipart/form-data body",
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "multipart field \"file\" is required",
		})
	}

	// Reject bad names before reading the body into the data folder.
	if _, err := upload.Validate(header.Filename); err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	f, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "reading upload: " + err.Error()})
	}
	defer f.Close()

	res, err := s.config.Uploader.Upload(c.Context(), header.Filename, f)
	if err != nil {
		s.logger.Error("upload failed", "filename", header.Filename, "error", err)
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleReindex runs a pass. With force=true the snapshot is discarded and
// the index rebuilt from scratch.
func (s *Server) handleReindex(c *fiber.Ctx) error {
	force := false
	if forceStr := c.Query("force"); forceStr != "" {
		parsed, err := strconv.ParseBool(forceStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "force must be true or false",
			})
		}
		force = parsed
	}

	res, err := s.config.Indexer.Sync(c.Context(), indexsync.Options{
		ForceRebuild: force,
		Reason:       "api",
	})
	if err != nil {
		s.logger.Error("reindex failed", "force", force, "error", err)
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(res)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrInvalidName),
		errors.Is(err, upload.ErrReservedName):
		return fiber.StatusBadRequest
	case errors.Is(err, upload.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, indexsync.ErrEmbeddingProvider),
		errors.Is(err, vector.ErrEmbedding),
		errors.Is(err, indexsync.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
