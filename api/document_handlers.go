package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/storage"
)

// DocumentListResponse is the body of GET /v1/documents.
type DocumentListResponse struct {
	Documents []*storage.Document `json:"documents"`
}

type ingestRequest struct {
	Indices []int `json:"indices"`
}

// handleListDocuments handles GET /v1/documents.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs, err := s.pipeline.ListDocuments(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return s.writeError(c, err)
	}
	if docs == nil {
		docs = []*storage.Document{}
	}
	return c.JSON(DocumentListResponse{Documents: docs})
}

// handleUploadDocument handles POST /v1/documents with a multipart "file"
// field. The document is returned with 201 once stored; a synchronous
// ingestion that leaves chunks unindexed returns 207 with the document.
func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "unreadable upload")
	}

	doc, err := s.pipeline.Upload(c.UserContext(), currentUser(c).ID, fh.Filename, fh.Header.Get(fiber.HeaderContentType), data)
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(doc)
	case doc != nil && errors.Is(err, errs.ErrPartialIngestion):
		return c.Status(fiber.StatusMultiStatus).JSON(doc)
	}
	return s.writeError(c, err)
}

// handleDeleteDocument handles DELETE /v1/documents/:id.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	if err := s.pipeline.DeleteDocument(c.UserContext(), currentUser(c).ID, c.Params("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleIngestDocument handles POST /v1/documents/:id/ingest. An optional
// body {"indices": [...]} retries only those chunks; without it the whole
// document is re-ingested.
func (s *Server) handleIngestDocument(c *fiber.Ctx) error {
	var req ingestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid ingest request body")
		}
	}

	report, err := s.pipeline.Reingest(c.UserContext(), currentUser(c).ID, c.Params("id"), req.Indices)
	switch {
	case err == nil:
		return c.JSON(report)
	case report != nil && errors.Is(err, errs.ErrPartialIngestion):
		return c.Status(fiber.StatusMultiStatus).JSON(report)
	}

	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		s.logger.Warn("ingestion failed",
			"document_id", c.Params("id"),
			"step", string(stepErr.Step),
			"error", stepErr.Err,
		)
	}
	return s.writeError(c, err)
}
