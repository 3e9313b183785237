package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/app"
	"deepresearch/internal/transport/http/response"
)

const maxUploadSize = 10 << 20 // 10 MB

type ResearchHandler struct {
	service *app.ResearchService
}

type StartResearchRequest struct {
	Query            string `json:"query" binding:"required"`
	ParentResearchID string `json:"parent_research_id"`
}

type ContinueResearchRequest struct {
	Query string `json:"query" binding:"required"`
}

func NewResearchHandler(service *app.ResearchService) *ResearchHandler {
	return &ResearchHandler{service: service}
}

func (h *ResearchHandler) Start(c *gin.Context) {
	var req StartResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.service.Start(c.Request.Context(), req.Query, req.ParentResearchID)
	if err != nil {
		h.writeStartError(c, err)
		return
	}

	response.Created(c, gin.H{
		"research_id":        session.ID,
		"parent_research_id": session.ParentID,
		"status":             session.Status,
	})
}

func (h *ResearchHandler) Continue(c *gin.Context) {
	parentID := c.Param("id")

	var req ContinueResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.service.Start(c.Request.Context(), req.Query, parentID)
	if err != nil {
		h.writeStartError(c, err)
		return
	}

	response.Created(c, gin.H{
		"research_id":        session.ID,
		"parent_research_id": parentID,
		"status":             session.Status,
	})
}

func (h *ResearchHandler) writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyQuery):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidContinuation):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidContinuation, err.Error())
	case errors.Is(err, app.ErrEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeEnqueueFailed, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start research failed")
	}
}

func (h *ResearchHandler) Detail(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get research detail failed")
		}
		return
	}

	response.OK(c, detail)
}

func (h *ResearchHandler) History(c *gin.Context) {
	sessions, err := h.service.History()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list research history failed")
		return
	}

	response.OK(c, sessions)
}

func (h *ResearchHandler) Upload(c *gin.Context) {
	sessionID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file is required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file exceeds 10 MB limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), sessionID, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrSessionTerminal):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUnsupportedFile), errors.Is(err, app.ErrEmptyDocument):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedDocument, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload document failed")
		}
		return
	}

	response.Created(c, gin.H{
		"document_id":   doc.ID,
		"filename":      doc.Filename,
		"summary_ready": doc.SummaryReady(),
	})
}
