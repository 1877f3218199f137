// Package claims provides the claims bounded context module: the admin API
// over the claim registry and the override resolver.
package claims

import (
	"cashback_backend/internal/claims/handler"
	"cashback_backend/internal/claims/override"
	"cashback_backend/internal/claims/registry"
	apphttp "cashback_backend/internal/http"
	"cashback_backend/platform/logger"
	"cashback_backend/platform/validator"
)

// Module is the claims bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	registry *registry.Service
	resolver *override.Resolver
}

// NewModule wires the admin handler around an existing registry.
func NewModule(reg *registry.Service, val *validator.Validator, log *logger.Logger) *Module {
	resolver := override.NewResolver(reg, log)
	return &Module{
		handler:  handler.New(reg, resolver, val, log),
		registry: reg,
		resolver: resolver,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "claims"
}

// Registry returns the claim registry for other modules.
func (m *Module) Registry() *registry.Service {
	return m.registry
}

// Resolver returns the override resolver shared with the chat path.
func (m *Module) Resolver() *override.Resolver {
	return m.resolver
}

// RegisterRoutes mounts the seller-only admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/claims")
	group.POST("/override", m.handler.Override)
	group.GET("/:identity", m.handler.ListClaims)
	group.POST("/:id/paid", m.handler.MarkPaid)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
