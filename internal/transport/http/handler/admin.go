package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyai-rag/internal/app"
	"vidyai-rag/internal/model"
	"vidyai-rag/internal/transport/http/response"
)

type JobService interface {
	Enqueue(ctx context.Context, chapterID uint, sourceRef string) (*model.IngestionJob, error)
	GetJobStatus(ctx context.Context, jobID string) (*model.IngestionJob, error)
}

type ChapterService interface {
	Ensure(ctx context.Context, chapterID uint) (app.IngestResult, error)
	Stats(ctx context.Context, chapterID uint) (*app.ChapterStats, error)
}

type AdminHandler struct {
	jobs     JobService
	chapters ChapterService
}

type IngestRequest struct {
	SourceRef string `json:"source_ref" binding:"max=1024"`
}

func NewAdminHandler(jobs JobService, chapters ChapterService) *AdminHandler {
	return &AdminHandler{jobs: jobs, chapters: chapters}
}

func (h *AdminHandler) Ingest(c *gin.Context) {
	chapterID, ok := chapterIDParam(c)
	if !ok {
		return
	}
	var req IngestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	job, err := h.jobs.Enqueue(c.Request.Context(), chapterID, req.SourceRef)
	if err != nil {
		writeError(c, err, "enqueue ingestion failed")
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{
		"job_id":     job.ID,
		"chapter_id": job.ChapterID,
		"status":     job.Status,
	})
}

func (h *AdminHandler) Ensure(c *gin.Context) {
	chapterID, ok := chapterIDParam(c)
	if !ok {
		return
	}
	res, err := h.chapters.Ensure(c.Request.Context(), chapterID)
	if err != nil {
		writeError(c, err, "ensure embeddings failed")
		return
	}
	response.OK(c, gin.H{
		"chapter_id":      chapterID,
		"embedded_chunks": res.Embedded,
		"outcome":         res.Outcome,
	})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	chapterID, ok := chapterIDParam(c)
	if !ok {
		return
	}
	stats, err := h.chapters.Stats(c.Request.Context(), chapterID)
	if err != nil {
		writeError(c, err, "load chapter stats failed")
		return
	}
	response.OK(c, stats)
}

func (h *AdminHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "load job failed")
		return
	}
	response.OK(c, job)
}
