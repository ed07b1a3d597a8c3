package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyai-rag/internal/app"
	"vidyai-rag/internal/transport/http/response"
)

const defaultNumQuestions = 10

type RetrievalService interface {
	RetrieveContext(ctx context.Context, chapterID uint, query string) (string, error)
}

type GenerationService interface {
	GenerateQuestionSet(ctx context.Context, chapterID uint, count int) (*app.QuestionSetResult, error)
}

type ChapterHandler struct {
	retrieval  RetrievalService
	generation GenerationService
}

type ContextRequest struct {
	Query string `json:"query" binding:"required,max=2000"`
}

type QuestionsRequest struct {
	NumQuestions int `json:"num_questions" binding:"omitempty,min=1,max=50"`
}

func NewChapterHandler(retrieval RetrievalService, generation GenerationService) *ChapterHandler {
	return &ChapterHandler{retrieval: retrieval, generation: generation}
}

func (h *ChapterHandler) Context(c *gin.Context) {
	chapterID, ok := chapterIDParam(c)
	if !ok {
		return
	}
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	text, err := h.retrieval.RetrieveContext(c.Request.Context(), chapterID, req.Query)
	if err != nil {
		writeError(c, err, "retrieve context failed")
		return
	}
	response.OK(c, gin.H{
		"chapter_id": chapterID,
		"context":    text,
	})
}

func (h *ChapterHandler) Questions(c *gin.Context) {
	chapterID, ok := chapterIDParam(c)
	if !ok {
		return
	}
	var req QuestionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = defaultNumQuestions
	}
	set, err := h.generation.GenerateQuestionSet(c.Request.Context(), chapterID, req.NumQuestions)
	if err != nil {
		writeError(c, err, "generate questions failed")
		return
	}
	response.OK(c, set)
}
