package handler

import (
	"context"
	"errors"
	"log"

	"job-ingest/internal/delivery/http/dto"
	"job-ingest/internal/delivery/http/middleware"
	"job-ingest/internal/domain/job"
	"job-ingest/internal/pkg/response"
	"job-ingest/internal/repository"
	"job-ingest/internal/usecase/ingest"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type IngestUsecase interface {
	Ingest(ctx context.Context, userID uuid.UUID, sub job.Submission) (ingest.Result, error)
	IngestHTML(ctx context.Context, userID uuid.UUID, sub job.Submission) (ingest.Result, job.Extracted, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*job.Record, error)
}

type IngestHandler struct {
	uc     IngestUsecase
	logger *log.Logger
}

func NewIngestHandler(uc IngestUsecase, logger *log.Logger) *IngestHandler {
	return &IngestHandler{uc: uc, logger: logger}
}

// RegisterRoutes expects r to be behind the auth middleware.
func (h *IngestHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/jobs/ingest", h.HandleIngest)
	r.Post("/jobs/ingest-html", h.HandleIngestHTML)
	r.Get("/jobs/:id", h.HandleGetJob)
}

func (h *IngestHandler) HandleIngest(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	var req dto.IngestRequest
	if err := c.Bind().Body(&req); err != nil {
		return ingestError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := req.Validate(); msg != "" {
		return ingestError(c, fiber.StatusBadRequest, msg)
	}

	res, err := h.uc.Ingest(c.Context(), userID, req.ToSubmission())
	if err != nil {
		return h.failure(c, userID, err)
	}
	return response.JSON(c, fiber.StatusOK, newIngestResponse(res))
}

// HandleIngestHTML extracts from the posted page before answering and
// returns the extracted fields alongside the saved job id.
func (h *IngestHandler) HandleIngestHTML(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	var req dto.IngestHTMLRequest
	if err := c.Bind().Body(&req); err != nil {
		return ingestError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := req.Validate(); msg != "" {
		return ingestError(c, fiber.StatusBadRequest, msg)
	}

	res, extracted, err := h.uc.IngestHTML(c.Context(), userID, req.ToSubmission())
	if err != nil {
		return h.failure(c, userID, err)
	}
	out := newIngestResponse(res)
	if res.Status == ingest.StatusSuccess {
		out.ExtractedData = dto.NewExtractedData(extracted)
	}
	return response.JSON(c, fiber.StatusOK, out)
}

func (h *IngestHandler) failure(c fiber.Ctx, userID uuid.UUID, err error) error {
	if errors.Is(err, ingest.ErrInvalidInput) {
		return ingestError(c, fiber.StatusBadRequest, "Invalid job URL")
	}
	if h.logger != nil {
		h.logger.Printf("[Ingest] request failed user_id=%s err=%v", userID, err)
	}
	if errors.Is(err, ingest.ErrExtraction) {
		return ingestError(c, fiber.StatusInternalServerError, "Failed to extract job")
	}
	return ingestError(c, fiber.StatusInternalServerError, "Failed to save job")
}

func newIngestResponse(res ingest.Result) dto.IngestResponse {
	out := dto.IngestResponse{
		Status:      string(res.Status),
		Message:     res.Message,
		IsDuplicate: res.Status == ingest.StatusDuplicate,
	}
	if res.JobID != uuid.Nil {
		id := res.JobID.String()
		out.JobID = &id
	}
	return out
}

func (h *IngestHandler) HandleGetJob(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid job id", nil, err)
	}

	rec, err := h.uc.Get(c.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return middleware.NewAppError(fiber.StatusNotFound, "Job not found", nil, err)
		}
		return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
	return response.Success(c, fiber.StatusOK, "success", dto.NewJobResponse(*rec))
}

func ingestError(c fiber.Ctx, status int, msg string) error {
	return response.JSON(c, status, dto.IngestResponse{
		Status:  string(ingest.StatusError),
		Message: msg,
	})
}
