package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"video_ingest_service/internal/ingest/app"
	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/logger"
	"video_ingest_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// VideoHandler ingest http handler
type VideoHandler struct {
	Usecase app.IngestUseCase
}

// NewVideoHandler create video handler
func NewVideoHandler(usecase app.IngestUseCase) *VideoHandler {
	return &VideoHandler{Usecase: usecase}
}

// ErrorRes error body; FailedIDs only for a partial delete
type ErrorRes struct {
	Error     string   `json:"error"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// DeleteVideoReq optional explicit ids to delete
type DeleteVideoReq struct {
	PublicIDs []string `json:"publicIds"`
}

// UploadVideo godoc
// @Summary Upload a video
// @Description Stages the file, splits it when it is above the store limit, uploads every part and returns the assembled record
// @Tags Videos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Video Title"
// @Param description formData string false "Video Description"
// @Param file formData file true "Video File"
// @Success 201 {object} domain.VideoRecord
// @Failure 400 {object} ErrorRes
// @Failure 422 {object} ErrorRes "Probe failed or parts still too large"
// @Failure 502 {object} ErrorRes "Upload to the object store failed"
// @Router /videos [post]
func (h *VideoHandler) UploadVideo(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorRes{Error: "Missing file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Log.Errorf("Open file failed", err)
		return c.Status(http.StatusInternalServerError).JSON(ErrorRes{Error: "Failed to open file"})
	}
	defer file.Close()

	record, err := h.Usecase.UploadVideo(c.UserContext(), domain.IngestJob{
		OwnerID:     middlewares.OwnerID(c),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		FileName:    fileHeader.Filename,
		File:        file,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(record)
}

// GetVideo godoc
// @Summary Get a video record
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} domain.VideoRecord
// @Failure 404 {object} ErrorRes
// @Router /videos/{id} [get]
func (h *VideoHandler) GetVideo(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return writeError(c, err)
	}
	record, err := h.Usecase.GetVideo(c.UserContext(), middlewares.OwnerID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(record)
}

// GetPlayback godoc
// @Summary Playback manifest
// @Description Parts in order with presigned urls and unified timeline offsets
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} domain.PlaybackManifest
// @Failure 404 {object} ErrorRes
// @Router /videos/{id}/playback [get]
func (h *VideoHandler) GetPlayback(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return writeError(c, err)
	}
	manifest, err := h.Usecase.GetPlayback(c.UserContext(), middlewares.OwnerID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(manifest)
}

// UpdateVideo godoc
// @Summary Edit title / description
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Param patch body domain.VideoPatch true "Fields to change"
// @Success 200 {object} domain.VideoRecord
// @Failure 400 {object} ErrorRes
// @Failure 404 {object} ErrorRes
// @Router /videos/{id} [patch]
func (h *VideoHandler) UpdateVideo(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return writeError(c, err)
	}
	var patch domain.VideoPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorRes{Error: "Invalid body"})
	}
	record, err := h.Usecase.UpdateVideo(c.UserContext(), middlewares.OwnerID(c), id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(record)
}

// DeleteVideo godoc
// @Summary Delete a video
// @Description Deletes every remote part first; the record is only removed when all of them are gone
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Param body body DeleteVideoReq false "Explicit public ids"
// @Success 200 {object} domain.DeleteVideoRes
// @Failure 404 {object} ErrorRes
// @Failure 502 {object} ErrorRes "Some remote ids could not be deleted"
// @Router /videos/{id} [delete]
func (h *VideoHandler) DeleteVideo(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req DeleteVideoReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorRes{Error: "Invalid body"})
		}
	}
	res, err := h.Usecase.DeleteVideo(c.UserContext(), middlewares.OwnerID(c), id, req.PublicIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// ListRuns godoc
// @Summary Recent ingest runs
// @Description Pipeline runs of the caller, newest first, failed runs included
// @Tags Ingest
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max runs (1-100)" default(20)
// @Success 200 {array} domain.IngestRun
// @Router /ingest-runs [get]
func (h *VideoHandler) ListRuns(c *fiber.Ctx) error {
	runs, err := h.Usecase.ListRuns(c.UserContext(), middlewares.OwnerID(c), int64(c.QueryInt("limit", 20)))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(runs)
}

func videoID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidInput
	}
	return uint(id), nil
}

// writeError domain error -> status code
func writeError(c *fiber.Ctx, err error) error {
	var (
		probeErr     *domain.ProbeError
		oversizedErr *domain.OversizedPartError
		uploadErr    *domain.UploadError
		recErr       *domain.ReconciliationError
	)
	switch {
	case errors.As(err, &recErr):
		return c.Status(http.StatusBadGateway).JSON(ErrorRes{Error: err.Error(), FailedIDs: recErr.FailedIDs})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorRes{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(http.StatusBadRequest).JSON(ErrorRes{Error: err.Error()})
	case errors.As(err, &probeErr), errors.As(err, &oversizedErr):
		return c.Status(http.StatusUnprocessableEntity).JSON(ErrorRes{Error: err.Error()})
	case errors.As(err, &uploadErr):
		return c.Status(http.StatusBadGateway).JSON(ErrorRes{Error: err.Error()})
	default:
		logger.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorRes{Error: "Internal Server Error"})
	}
}
