package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/engine"
	"github.com/ascentclub/server/internal/perm"
	"github.com/ascentclub/server/internal/repository"
)

// AttendanceHandler exposes the join/leave lifecycle and the waitlist over
// HTTP. The handler stays thin: every decision lives in the engine or the
// rules, and the handler only translates Denials into status codes.
type AttendanceHandler struct {
	Engine     *engine.Engine
	Attendance *repository.AttendanceRepo
	Waitlist   *repository.WaitlistRepo
	Resolver   *perm.Resolver
	Log        *zap.Logger
}

func NewAttendanceHandler(eng *engine.Engine, att *repository.AttendanceRepo,
	wl *repository.WaitlistRepo, res *perm.Resolver, log *zap.Logger) *AttendanceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceHandler{Engine: eng, Attendance: att, Waitlist: wl, Resolver: res, Log: log}
}

// writeEngineError maps engine errors onto HTTP responses. Denials carry
// their own status code and reason; everything else is a 404 or 500.
func writeEngineError(c echo.Context, err error) error {
	if d, ok := engine.AsDenial(err); ok {
		return c.JSON(d.Code, echo.Map{"error": d.Reason})
	}
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, engine.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, engine.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "try again"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// Join handles POST /v1/events/:id/join.
func (h *AttendanceHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Attend(c.Request().Context(), eventID, uid); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "attending"})
}

// Leave handles POST /v1/events/:id/leave.
func (h *AttendanceHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.Leave(c.Request().Context(), eventID, uid); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "left"})
}

// CanJoin handles GET /v1/events/:id/can-join. It previews the join rules
// without mutating anything, so clients can render a join button state.
// Guests may call it; they get the unauthenticated denial.
func (h *AttendanceHandler) CanJoin(c echo.Context) error {
	uid, _ := getUserID(c) // zero means guest
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	dec, err := h.Engine.PreviewJoin(c.Request().Context(), eventID, uid)
	if err != nil {
		return writeEngineError(c, err)
	}
	resp := echo.Map{"can_join": dec.OK}
	if !dec.OK {
		resp["reason"] = dec.Reason
	}
	return c.JSON(http.StatusOK, resp)
}

// Attendees handles GET /v1/events/:id/attendees. Everyone sees names;
// email and balance appear only for viewers the resolver trusts with
// member details for this event.
func (h *AttendanceHandler) Attendees(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	includePII := h.Resolver.CanViewMemberDetails(ctx, uid, eventID)
	attendees, err := h.Attendance.ListByEvent(ctx, eventID, includePII)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"attendees": attendees})
}

// JoinWaitlist handles POST /v1/events/:id/waitlist. The engine refuses
// the queue unless the event exists, is still open and is at capacity;
// joining while already queued is idempotent and keeps the original
// position.
func (h *AttendanceHandler) JoinWaitlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	if err := h.Engine.Enqueue(ctx, eventID, uid); err != nil {
		return writeEngineError(c, err)
	}
	pos, err := h.Waitlist.Position(ctx, eventID, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "waitlisted", "position": pos})
}

// LeaveWaitlist handles DELETE /v1/events/:id/waitlist. Leaving when not
// queued is a no-op.
func (h *AttendanceHandler) LeaveWaitlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Waitlist.Remove(c.Request().Context(), eventID, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "waitlist leave failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// WaitlistPosition handles GET /v1/events/:id/waitlist. Position is
// 1-based; 0 means not queued.
func (h *AttendanceHandler) WaitlistPosition(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	pos, err := h.Waitlist.Position(c.Request().Context(), eventID, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"position": pos, "queued": pos > 0})
}
