package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ascentclub/server/internal/handler"
	"github.com/ascentclub/server/internal/middleware"
	"github.com/ascentclub/server/internal/perm"
)

// RegisterRoutes registers routes that require no authentication at all.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the session lifecycle. Unauthenticated operations
// live under /v1/auth; the account endpoints require a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, led *handler.LedgerHandler,
	adm *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("", a.Me)
	me.DELETE("", adm.DeleteAccount)
	me.GET("/balance", led.Balance)
	me.GET("/ledger", led.Entries)
}

// RegisterEvents wires browsing and the attendance lifecycle. Browse
// endpoints accept guests; identity, when present, tightens or loosens
// what the visibility rules show. Mutating endpoints require a session.
func RegisterEvents(e *echo.Echo, ev *handler.EventHandler, at *handler.AttendanceHandler, jwtSecret string) {
	browse := e.Group("/v1")
	browse.Use(middleware.OptionalJWT(jwtSecret))
	browse.GET("/events", ev.List)
	browse.GET("/events/:id", ev.Get)
	browse.GET("/search/events", ev.Search)
	browse.GET("/events/:id/can-join", at.CanJoin)

	auth := e.Group("/v1/events/:id")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("/join", at.Join)
	auth.POST("/leave", at.Leave)
	auth.GET("/attendees", at.Attendees)
	auth.POST("/waitlist", at.JoinWaitlist)
	auth.DELETE("/waitlist", at.LeaveWaitlist)
	auth.GET("/waitlist/position", at.WaitlistPosition)
}

// RegisterAdmin wires the administrative surface. Event creation needs
// the global manage capability; cancellation is checked in the handler
// because scoped managers qualify per event; the presidency handover is
// double-gated (capability here, password re-check in the engine).
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, adm *handler.AdminHandler,
	resolver *perm.Resolver, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.POST("/events", ev.Create, middleware.RequirePermission(resolver, perm.PermManageEvents))
	g.POST("/events/:id/cancel", adm.CancelEvent)
	g.POST("/president-transfer", adm.TransferPresidency,
		middleware.RequirePermission(resolver, perm.PermTransferPresidency))
}
