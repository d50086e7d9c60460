package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("COGNITO_USER_POOL_ID", "")
	t.Setenv("COGNITO_CLIENT_ID", "")

	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, DefaultRegion, cfg.Auth.Region)
	assert.Equal(t, "http://localhost:8188/", cfg.Auth.RedirectSignIn)
	assert.Equal(t, "http://localhost:8188/", cfg.Auth.RedirectSignOut)
	assert.Equal(t, DemoStorageSQLite, cfg.Demo.Storage)
	assert.Equal(t, time.Second, cfg.Demo.Latency)
	assert.Equal(t, 15*time.Minute, cfg.Auth.SignInWindow)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionLifetime)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.False(t, cfg.Auth.Complete())
}

func TestNewConfig_RedirectsFollowPublicURL(t *testing.T) {
	t.Setenv("PUBLIC_URL", "https://app.nutrinani.com/")

	cfg := NewConfig()

	assert.Equal(t, "https://app.nutrinani.com/", cfg.Auth.RedirectSignIn)
	assert.Equal(t, "https://app.nutrinani.com/", cfg.Auth.RedirectSignOut)
}

func TestNewConfig_ExplicitRedirects(t *testing.T) {
	t.Setenv("COGNITO_REDIRECT_SIGN_IN", "https://app.nutrinani.com/auth/callback")
	t.Setenv("COGNITO_REDIRECT_SIGN_OUT", "https://app.nutrinani.com/bye")

	cfg := NewConfig()

	assert.Equal(t, "https://app.nutrinani.com/auth/callback", cfg.Auth.RedirectSignIn)
	assert.Equal(t, "https://app.nutrinani.com/bye", cfg.Auth.RedirectSignOut)
}

func TestAuth_Complete(t *testing.T) {
	tests := []struct {
		name     string
		poolID   string
		clientID string
		want     bool
	}{
		{"both set", "p1", "c1", true},
		{"pool missing", "", "c1", false},
		{"client missing", "p1", "", false},
		{"both missing", "", "", false},
		{"whitespace only", "  ", "c1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Auth{UserPoolID: tt.poolID, ClientID: tt.clientID}
			assert.Equal(t, tt.want, a.Complete())
		})
	}
}

func TestAuth_Federated(t *testing.T) {
	assert.False(t, Auth{}.Federated())
	assert.True(t, Auth{Domain: "nutrinani.auth.ap-south-1.amazoncognito.com"}.Federated())
}
