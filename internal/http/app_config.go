package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutrinani/nutrinani/internal/api"
	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
)

// AppConfigResponse tells the UI which modes it is running in.
type AppConfigResponse struct {
	AuthMode       string `json:"auth_mode"`
	APIDemoMode    bool   `json:"api_demo_mode"`
	FederatedLogin bool   `json:"federated_login"`
}

type AppConfigController struct {
	auth       auth.Authenticator
	apiBaseURL string
	federated  bool
}

func NewAppConfigController(a auth.Authenticator, apiBaseURL string, federated bool) *AppConfigController {
	return &AppConfigController{auth: a, apiBaseURL: apiBaseURL, federated: federated}
}

// Get returns the public client configuration. Demo mode always offers the
// simulated Google sign-in.
func (ac *AppConfigController) Get(c *gin.Context) {
	mode := ac.auth.Mode()
	c.JSON(http.StatusOK, AppConfigResponse{
		AuthMode:       string(mode),
		APIDemoMode:    api.IsDemoMode(ac.apiBaseURL),
		FederatedLogin: mode == config.AuthModeDemo || ac.federated,
	})
}
