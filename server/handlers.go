package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
)

type handlers struct {
	svc Service
	log *logger.Logger
}

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

type transcriptionRequest struct {
	// URL and AudioPath are mutually exclusive; exactly one must be set.
	URL       string `json:"url"`
	AudioPath string `json:"audio_path"`
}

type pathResponse struct {
	Path string `json:"path"`
}

func (h *handlers) health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

func (h *handlers) createTranscription(c *gin.Context) {
	var req transcriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration("invalid request body"))
		return
	}
	if (req.URL == "") == (req.AudioPath == "") {
		RespondWithError(c, apperrors.Configuration("exactly one of url or audio_path is required"))
		return
	}

	var err error
	var result any
	if req.URL != "" {
		result, err = h.svc.ProcessURL(c.Request.Context(), req.URL, nil)
	} else {
		result, err = h.svc.Transcribe(c.Request.Context(), req.AudioPath, nil)
	}
	if err != nil {
		h.log.Error("transcription failed", map[string]interface{}{"error": err.Error()})
		RespondWithError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *handlers) downloadAudio(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration("invalid request body"))
		return
	}
	path, err := h.svc.DownloadAudio(c.Request.Context(), req.URL)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, pathResponse{Path: path})
}

func (h *handlers) downloadVideo(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration("invalid request body"))
		return
	}
	path, err := h.svc.DownloadVideo(c.Request.Context(), req.URL)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, pathResponse{Path: path})
}
