package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/journeys-backend/internal/http/response"
	"github.com/yungbote/journeys-backend/internal/modules/journey"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
)

type JourneyFetcher interface {
	FetchJourney(ctx context.Context, journeyID, userID uuid.UUID, lang string) (*journey.JourneyView, error)
	ClearAllCache()
	Stats() journey.CacheStats
}

type JourneyReconciler interface {
	DiagnoseInconsistencies(ctx context.Context, userID, journeyID uuid.UUID) (*journey.Diagnostics, error)
	FullSynchronization(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
	ManualRepair(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
	CleanupGhostData(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
}

type JourneyLifecycle interface {
	DeleteJourneyCompletely(ctx context.Context, userID, journeyID uuid.UUID) journey.DeleteOutcome
	ResetJourneyForReplay(ctx context.Context, userID, journeyID uuid.UUID) journey.ResetOutcome
	AcquireCompletedJourney(ctx context.Context, userID, journeyID uuid.UUID) bool
	ValidateJourneyExists(ctx context.Context, journeyID uuid.UUID) bool
	CheckForGhostValidations(ctx context.Context, userID, journeyID uuid.UUID) journey.GhostCheck
}

type JourneyHandler struct {
	cache     JourneyFetcher
	reconcile JourneyReconciler
	lifecycle JourneyLifecycle
}

func NewJourneyHandler(cache JourneyFetcher, reconcile JourneyReconciler, lifecycle JourneyLifecycle) *JourneyHandler {
	return &JourneyHandler{cache: cache, reconcile: reconcile, lifecycle: lifecycle}
}

func journeyIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = errors.New("journey id is nil")
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_journey_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// requestLanguage prefers ?lang= over Accept-Language.
func requestLanguage(c *gin.Context) string {
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return lang
	}
	return c.GetHeader("Accept-Language")
}

// GET /api/journeys/:id
func (h *JourneyHandler) GetJourney(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	view, err := h.cache.FetchJourney(ctx, journeyID, ctxutil.UserID(ctx), requestLanguage(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"journey": view})
}

// GET /api/journeys/:id/exists
func (h *JourneyHandler) Exists(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	response.RespondOK(c, gin.H{"exists": h.lifecycle.ValidateJourneyExists(c.Request.Context(), journeyID)})
}

// GET /api/journeys/:id/diagnostics
func (h *JourneyHandler) Diagnostics(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	d, err := h.reconcile.DiagnoseInconsistencies(ctx, ctxutil.UserID(ctx), journeyID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"diagnostics": d})
}

// POST /api/journeys/:id/sync
func (h *JourneyHandler) Sync(c *gin.Context) {
	h.runSync(c, h.reconcile.FullSynchronization)
}

// POST /api/journeys/:id/repair
func (h *JourneyHandler) Repair(c *gin.Context) {
	h.runSync(c, h.reconcile.ManualRepair)
}

// POST /api/journeys/:id/cleanup
func (h *JourneyHandler) Cleanup(c *gin.Context) {
	h.runSync(c, h.reconcile.CleanupGhostData)
}

func (h *JourneyHandler) runSync(c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID) journey.SyncResult) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	response.RespondOK(c, gin.H{"result": op(ctx, ctxutil.UserID(ctx), journeyID)})
}

// GET /api/journeys/:id/ghost-validations
func (h *JourneyHandler) GhostValidations(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	response.RespondOK(c, gin.H{"ghostValidations": h.lifecycle.CheckForGhostValidations(ctx, ctxutil.UserID(ctx), journeyID)})
}

// DELETE /api/journeys/:id/progress
func (h *JourneyHandler) DeleteProgress(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	response.RespondOK(c, gin.H{"result": h.lifecycle.DeleteJourneyCompletely(ctx, ctxutil.UserID(ctx), journeyID)})
}

// POST /api/journeys/:id/reset
func (h *JourneyHandler) Reset(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	response.RespondOK(c, gin.H{"result": h.lifecycle.ResetJourneyForReplay(ctx, ctxutil.UserID(ctx), journeyID)})
}

// POST /api/journeys/:id/acquire
func (h *JourneyHandler) Acquire(c *gin.Context) {
	journeyID, ok := journeyIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	response.RespondOK(c, gin.H{"acquired": h.lifecycle.AcquireCompletedJourney(ctx, ctxutil.UserID(ctx), journeyID)})
}

// DELETE /api/cache
func (h *JourneyHandler) ClearCache(c *gin.Context) {
	h.cache.ClearAllCache()
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /api/cache/stats
func (h *JourneyHandler) CacheStats(c *gin.Context) {
	response.RespondOK(c, gin.H{"stats": h.cache.Stats()})
}
