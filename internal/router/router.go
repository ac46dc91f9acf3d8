package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/kdelmo1/sano-server/internal/handler"    // import the handlers that implement business logic
	"github.com/kdelmo1/sano-server/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session (register, login,
	// refresh).  Each of these handlers generates or exchanges tokens.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only reissues the
	// access token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a bearer access token (revokes all sessions) or
	// a JSON body with a `refresh_token` (revokes that session only), so it
	// does not sit behind the JWT middleware.
	g.POST("/logout", a.Logout)

	// Protected profile endpoint.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterFeed registers the post, reservation, message and rating routes.
// All of them require a valid access token: the feed is campus-only, and the
// occupant identity written by a toggle comes from the JWT handle claim.
// Extra middleware (rate limiting, response cache) is appended per route.
func RegisterFeed(
	e *echo.Echo,
	jwtSecret string,
	posts *handler.PostHandler,
	reservations *handler.ReservationHandler,
	messages *handler.MessageHandler,
	ratings *handler.RatingHandler,
	limiter echo.MiddlewareFunc,
	cache echo.MiddlewareFunc,
) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("STUDENT", "ADMIN"))
	if limiter != nil {
		g.Use(limiter)
	}

	// Feed reads are cacheable; everything mutating skips the cache.
	if cache != nil {
		g.GET("/posts", posts.ListFeed, cache)
		g.GET("/posts/:id", posts.GetPost, cache)
	} else {
		g.GET("/posts", posts.ListFeed)
		g.GET("/posts/:id", posts.GetPost)
	}
	g.POST("/posts", posts.CreatePost)
	g.DELETE("/posts/:id", posts.DeletePost)

	// Slot toggle: one endpoint both reserves and releases.
	g.POST("/posts/:id/reserve", reservations.Toggle)

	g.POST("/posts/:id/messages", messages.Send)
	g.GET("/posts/:id/messages", messages.Conversation)

	g.PUT("/users/:handle/rating", ratings.Rate)
	g.GET("/users/:handle/rating", ratings.Summary)
}
