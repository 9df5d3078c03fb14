package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ascentclub/server/internal/repository"
)

// LedgerHandler serves a user's own monetary history.
type LedgerHandler struct {
	Ledger *repository.LedgerRepo
}

func NewLedgerHandler(l *repository.LedgerRepo) *LedgerHandler {
	return &LedgerHandler{Ledger: l}
}

// Balance handles GET /v1/me/balance.
func (h *LedgerHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bal, err := h.Ledger.Balance(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": bal})
}

// Entries handles GET /v1/me/ledger?limit=N, newest first. The limit is
// bounded by repository.MaxLedgerPage so the handler and the query agree
// on what a valid page is.
func (h *LedgerHandler) Entries(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := repository.DefaultLedgerPage
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > repository.MaxLedgerPage {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	entries, err := h.Ledger.ListByUser(c.Request().Context(), uid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
