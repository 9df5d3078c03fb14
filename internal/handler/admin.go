package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/engine"
	"github.com/ascentclub/server/internal/perm"
	"github.com/ascentclub/server/internal/repository"
)

// AdminHandler covers the administrative surface: event cancellation,
// the annual presidency handover and account redaction. Authorization for
// event cancellation is resolver-checked here rather than by route
// middleware because scoped managers qualify per event.
type AdminHandler struct {
	Engine   *engine.Engine
	Events   *repository.EventRepo
	Perms    *repository.PermissionRepo
	Resolver *perm.Resolver
	DB       *sql.DB
	Log      *zap.Logger
}

func NewAdminHandler(eng *engine.Engine, events *repository.EventRepo,
	perms *repository.PermissionRepo, res *perm.Resolver, db *sql.DB, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{Engine: eng, Events: events, Perms: perms, Resolver: res, DB: db, Log: log}
}

// CancelEvent handles POST /v1/admin/events/:id/cancel. Global managers
// and managers of any of the event's tags may cancel.
func (h *AdminHandler) CancelEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	if !h.Resolver.CanManageEvent(ctx, uid, eventID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := h.Events.GetForUpdateTx(ctx, tx, eventID); err != nil {
		return writeEngineError(c, err)
	}
	if err := h.Events.MarkCanceledTx(ctx, tx, eventID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	committed = true

	h.Log.Info("event canceled by admin",
		zap.Uint64("event_id", eventID), zap.Uint64("user_id", uid))
	return c.JSON(http.StatusOK, echo.Map{"status": "canceled"})
}

type transferReq struct {
	TargetUserID uint64 `json:"target_user_id"`
	Password     string `json:"password"`
}

// TransferPresidency handles POST /v1/admin/president-transfer. The route
// middleware requires the president.transfer capability; the engine then
// re-verifies the actor's password before the destructive handover.
func (h *AdminHandler) TransferPresidency(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req transferReq
	if err := c.Bind(&req); err != nil || req.TargetUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "target_user_id required"})
	}
	if err := h.Engine.TransferPresident(c.Request().Context(), h.Perms, uid, req.TargetUserID, req.Password); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "transferred"})
}

// DeleteAccount handles DELETE /v1/me: redact PII and deactivate, keeping
// attendance and ledger history intact.
func (h *AdminHandler) DeleteAccount(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Engine.RedactAccount(c.Request().Context(), uid); err != nil {
		return writeEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
