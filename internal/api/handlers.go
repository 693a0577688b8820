package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midiscribe/internal/apperr"
	"midiscribe/internal/logging"
	"midiscribe/internal/model"
	"midiscribe/internal/utils"
)

const (
	// ArtifactFilename is the download name of every returned MIDI file.
	ArtifactFilename = "transcribed.midi"
	// ArtifactContentType is the media type of the returned MIDI file.
	ArtifactContentType = "audio/midi"
)

// JobRunner runs one transcription job for an audio URL.
type JobRunner interface {
	Run(ctx context.Context, audioURL string) (*model.Job, error)
}

// TranscribeRequest is the body of POST /transcribe.
type TranscribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type handler struct {
	jobs   JobRunner
	logger *zap.Logger
}

func RegisterRoutes(r *gin.Engine, jobs JobRunner, logger *zap.Logger) {
	h := &handler{jobs: jobs, logger: logging.OrNop(logger)}

	r.GET("/health", healthCheck)
	r.POST("/transcribe", h.transcribe)
}

// healthCheck returns server health status
func healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "midiscribe",
	})
}

// transcribe handles POST /transcribe: download audio_url, run the
// pipeline and return the MIDI as an attachment.
func (h *handler) transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid transcribe body", zap.Error(err))
		utils.Error(c, http.StatusBadRequest, string(apperr.MissingInput), "request body must be JSON with an audio_url field")
		return
	}

	job, err := h.jobs.Run(c.Request.Context(), req.AudioURL)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Attachment(c, ArtifactFilename, ArtifactContentType, job.Artifact)
}

func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		msg = "unexpected error: " + msg
	}
	utils.Error(c, kind.Status(), string(kind), msg)
}

// RecoveryHandler turns a handler panic into an UnhandledError response.
func RecoveryHandler(logger *zap.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		utils.Error(c, http.StatusInternalServerError, string(apperr.UnhandledError), "internal server error")
		c.Abort()
	})
}

// CORSMiddleware adds permissive CORS headers so browser front-ends can call the API.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
