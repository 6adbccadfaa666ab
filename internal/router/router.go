// Package router wires handlers, middleware and route groups onto the Echo
// instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/dhq-platform/accommodation/internal/config"
	"github.com/dhq-platform/accommodation/internal/handler"
	"github.com/dhq-platform/accommodation/internal/middleware"
	"github.com/dhq-platform/accommodation/internal/model"
)

// Deps bundles everything the route table needs.
type Deps struct {
	Cfg         config.Config
	Redis       *redis.Client
	Cache       config.CacheConfig
	RateLimit   config.RateLimitConfig
	Auth        *handler.AuthHandler
	Queue       *handler.QueueHandler
	Units       *handler.UnitHandler
	Allocations *handler.AllocationHandler
	Past        *handler.PastAllocationHandler
}

// Register mounts all routes. Read endpoints are open to every role,
// workflow and registry writes require ADMIN, and destructive operations
// (front insertion, force deletes, archive purges) require SUPERADMIN.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)

	api := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret))
	api.GET("/me", d.Auth.Me)

	anyRole := middleware.RequireRole(model.RoleClerk, model.RoleAdmin, model.RoleSuperadmin)
	adminUp := middleware.RequireRole(model.RoleAdmin, model.RoleSuperadmin)
	superOnly := middleware.RequireRole(model.RoleSuperadmin)
	cached := middleware.NewRedisCache(d.Cache, d.Redis)

	queue := api.Group("/queue")
	queue.GET("", d.Queue.List, anyRole, cached)
	queue.POST("", d.Queue.Intake, adminUp)
	queue.POST("/front", d.Queue.InsertFront, superOnly)
	queue.DELETE("/:id", d.Queue.Remove, adminUp)

	units := api.Group("/units")
	units.GET("", d.Units.List, anyRole, cached)
	units.GET("/:id", d.Units.Get, anyRole)
	units.POST("", d.Units.Create, adminUp)
	units.PUT("/:id", d.Units.Update, adminUp)
	units.DELETE("/:id", d.Units.Delete, adminUp)

	alloc := api.Group("/allocations")
	alloc.GET("", d.Allocations.List, anyRole, cached)
	alloc.GET("/letter-id", d.Allocations.NextLetterID, adminUp)
	alloc.GET("/:id", d.Allocations.Get, anyRole)
	alloc.GET("/:id/audit", d.Allocations.AuditTrail, adminUp)
	alloc.POST("", d.Allocations.Create, adminUp)
	alloc.POST("/:id/approve", d.Allocations.Approve, adminUp)
	alloc.POST("/:id/refuse", d.Allocations.Refuse, adminUp)
	alloc.POST("/:id/deallocate", d.Allocations.Deallocate, adminUp)
	alloc.POST("/deallocate-direct", d.Allocations.DeallocateDirect, adminUp)

	past := api.Group("/past-allocations")
	past.GET("", d.Past.List, anyRole, cached)
	past.DELETE("/:id", d.Past.Delete, superOnly)
	past.POST("/bulk-delete", d.Past.BulkDelete, superOnly)
}
