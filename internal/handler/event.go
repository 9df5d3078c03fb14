package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ascentclub/server/internal/model"
	"github.com/ascentclub/server/internal/repository"
	"github.com/ascentclub/server/internal/rules"
)

const defaultGuestMaxDifficulty = 2

// EventHandler serves event browsing, detail and search. Every read path
// runs through the visibility rules, so an event a viewer may not see is
// indistinguishable from one that does not exist.
type EventHandler struct {
	Events   *repository.EventRepo
	Tags     *repository.TagRepo
	Users    *repository.UserRepo
	Settings *repository.SettingRepo
	Log      *zap.Logger
}

func NewEventHandler(ev *repository.EventRepo, tags *repository.TagRepo,
	users *repository.UserRepo, settings *repository.SettingRepo, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventHandler{Events: ev, Tags: tags, Users: users, Settings: settings, Log: log}
}

type eventResp struct {
	ID              uint64     `json:"id"`
	Title           string     `json:"title"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	DifficultyLevel int        `json:"difficulty_level"`
	MaxAttendees    int        `json:"max_attendees"`
	UpfrontCents    int64      `json:"upfront_cost_cents"`
	RefundCutoff    *time.Time `json:"refund_cutoff,omitempty"`
	IsCanceled      bool       `json:"is_canceled"`
	SignupRequired  bool       `json:"signup_required"`
	Tags            []string   `json:"tags"`
}

func toEventResp(ev model.Event, tags []model.Tag) eventResp {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return eventResp{
		ID:              ev.ID,
		Title:           ev.Title,
		StartsAt:        ev.StartsAt,
		EndsAt:          ev.EndsAt,
		DifficultyLevel: ev.DifficultyLevel,
		MaxAttendees:    ev.MaxAttendees,
		UpfrontCents:    ev.UpfrontCostCents,
		RefundCutoff:    ev.RefundCutoff,
		IsCanceled:      ev.IsCanceled,
		SignupRequired:  ev.SignupRequired,
		Tags:            names,
	}
}

// viewer loads the optional authenticated user. Guests get nil.
func (h *EventHandler) viewer(ctx context.Context, c echo.Context) (*model.User, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, nil
	}
	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// visible applies the visibility rules for one event and returns its tags
// when the viewer may see it.
func (h *EventHandler) visible(ctx context.Context, viewer *model.User, ev model.Event, guestMax int) (bool, []model.Tag, error) {
	tags, err := h.Tags.ListByEvent(ctx, ev.ID)
	if err != nil {
		return false, nil, err
	}
	whitelisted := map[uint64]bool{}
	if viewer != nil {
		ids := make([]uint64, 0, len(tags))
		for _, t := range tags {
			if t.JoinPolicy == model.JoinPolicyWhitelist {
				ids = append(ids, t.ID)
			}
		}
		whitelisted, err = h.Tags.WhitelistedTags(ctx, viewer.ID, ids)
		if err != nil {
			return false, nil, err
		}
	}
	return rules.CanView(viewer, ev, tags, guestMax, whitelisted), tags, nil
}

func (h *EventHandler) guestMax(ctx context.Context) int {
	v, err := h.Settings.GetInt(ctx, repository.SettingGuestMaxDifficulty, defaultGuestMaxDifficulty)
	if err != nil {
		h.Log.Warn("settings read failed", zap.Error(err))
		return defaultGuestMaxDifficulty
	}
	return int(v)
}

// List handles GET /v1/events: upcoming events the viewer may see.
func (h *EventHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	guestMax := h.guestMax(ctx)

	events, err := h.Events.ListUpcoming(ctx, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		ok, tags, err := h.visible(ctx, viewer, ev, guestMax)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if ok {
			out = append(out, toEventResp(ev, tags))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Get handles GET /v1/events/:id. A hidden event answers 404, not 403, so
// the response does not leak its existence.
func (h *EventHandler) Get(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ok, tags, err := h.visible(ctx, viewer, ev, h.guestMax(ctx))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	return c.JSON(http.StatusOK, toEventResp(ev, tags))
}

// Search handles GET /v1/search/events?q=...&limit=..., title substring
// match, still visibility-filtered.
func (h *EventHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "q required"})
	}
	limit := 20
	ctx := c.Request().Context()
	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	guestMax := h.guestMax(ctx)
	events, err := h.Events.Search(ctx, q, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(events))
	for _, ev := range events {
		ok, tags, err := h.visible(ctx, viewer, ev, guestMax)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if ok {
			out = append(out, toEventResp(ev, tags))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

type createEventReq struct {
	Title           string     `json:"title"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	DifficultyLevel int        `json:"difficulty_level"`
	MaxAttendees    int        `json:"max_attendees"`
	UpfrontCents    int64      `json:"upfront_cost_cents"`
	RefundCutoff    *time.Time `json:"refund_cutoff"`
	SignupRequired  *bool      `json:"signup_required"`
}

// Create handles POST /v1/admin/events; the route is gated on the global
// events.manage capability.
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, starts_at and ends_at required"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if req.MaxAttendees < 0 || req.UpfrontCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "negative values not allowed"})
	}
	signup := true
	if req.SignupRequired != nil {
		signup = *req.SignupRequired
	}
	ev := model.Event{
		Title:            req.Title,
		StartsAt:         req.StartsAt.UTC(),
		EndsAt:           req.EndsAt.UTC(),
		DifficultyLevel:  req.DifficultyLevel,
		MaxAttendees:     req.MaxAttendees,
		UpfrontCostCents: req.UpfrontCents,
		RefundCutoff:     req.RefundCutoff,
		SignupRequired:   signup,
	}
	id, err := h.Events.Create(c.Request().Context(), &ev)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}
