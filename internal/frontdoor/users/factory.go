package users

import (
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/frontdoor/registry"
)

// FrontdoorType identifies the account routes.
const FrontdoorType = "users"

// RegisterFrontdoor registers the account routes with the frontdoor registry.
func RegisterFrontdoor() {
	if registry.IsRegistered(FrontdoorType) {
		return
	}
	registry.RegisterFactory(registry.FrontdoorFactory{
		Type:           FrontdoorType,
		Description:    "User registration, login and token check",
		CreateHandlers: createHandlers,
	})
}

func createHandlers(cfg registry.HandlerConfig) []registry.HandlerRegistration {
	h := NewHandler(cfg.Users, cfg.Logger)
	return []registry.HandlerRegistration{
		{Path: "/user/register", Method: http.MethodPost, Access: registry.Public, Handler: h.HandleRegister},
		{Path: "/user/login", Method: http.MethodPost, Access: registry.Public, Handler: h.HandleLogin},
		{Path: "/test/test", Method: http.MethodGet, Access: registry.Bearer, Handler: h.HandleTest},
	}
}
