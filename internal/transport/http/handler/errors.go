package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vidyai-rag/internal/app"
	"vidyai-rag/internal/transport/http/response"
)

// writeError maps service errors to the response envelope; unknown errors become 500 with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrChapterNotFound):
		response.Error(c, http.StatusNotFound, response.CodeChapterNotFound, err.Error())
	case errors.Is(err, app.ErrJobNotFound):
		response.Error(c, http.StatusNotFound, response.CodeJobNotFound, err.Error())
	case errors.Is(err, app.ErrNoEmbeddings):
		response.Error(c, http.StatusConflict, response.CodeNoEmbeddings, app.ErrNoEmbeddings.Error())
	case errors.Is(err, app.ErrNoContext):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoContext, app.ErrNoContext.Error())
	case errors.Is(err, app.ErrEmbeddingPrepare):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, app.ErrEmbeddingPrepare.Error())
	case errors.Is(err, app.ErrGeneration):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, app.ErrGeneration.Error())
	case errors.Is(err, app.ErrEnqueue), errors.Is(err, app.ErrQueueUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeEnqueueFailed, app.ErrEnqueue.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func chapterIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chapter id")
		return 0, false
	}
	return uint(id), true
}
