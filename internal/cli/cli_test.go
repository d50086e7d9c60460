package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log:      config.Log{Level: "error", Format: "console"},
		Database: config.Database{Path: filepath.Join(t.TempDir(), "nutrinani.db")},
		Demo:     config.Demo{Storage: config.DemoStorageSQLite},
		Auth:     config.Auth{PublicURL: "http://localhost:8188"},
	}
}

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func run(t *testing.T, cmd command, out *bytes.Buffer, args ...string) error {
	t.Helper()
	out.Reset()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd.Run()
}

func TestSignInThenWhoAmI(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	signIn := NewSignInCommand(cfg)
	signIn.Out = &out
	require.NoError(t, run(t, signIn, &out, "-email", "maria@example.com", "-password", "pw"))
	assert.Equal(t, "Signed in as maria <maria@example.com>\n", out.String())

	whoami := NewWhoAmICommand(cfg)
	whoami.Out = &out
	require.NoError(t, run(t, whoami, &out))
	assert.Equal(t, "maria <maria@example.com> (demo mode)\n", out.String())
}

func TestSignInPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	cmd := NewSignInCommand(testConfig(t))
	require.NoError(t, cmd.ParseFlags([]string{"-email", "a@b.c"}))
	assert.Equal(t, "from-env", cmd.Password)
}

func TestSignInRequiresEmail(t *testing.T) {
	cmd := NewSignInCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags([]string{"-password", "pw"}))
}

func TestSignInMissingPassword(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	var out bytes.Buffer

	cmd := NewSignInCommand(testConfig(t))
	cmd.Out = &out
	err := run(t, cmd, &out, "-email", "a@b.c")
	require.Error(t, err)
	assert.Equal(t, auth.ErrPasswordRequired.Error(), err.Error())
}

func TestSignUpDemoSignsIn(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	signUp := NewSignUpCommand(cfg)
	signUp.Out = &out
	require.NoError(t, run(t, signUp, &out, "-email", "maria@example.com", "-password", "pw", "-name", "Maria"))
	assert.Contains(t, out.String(), "demo mode")

	whoami := NewWhoAmICommand(cfg)
	whoami.Out = &out
	require.NoError(t, run(t, whoami, &out, "-json"))

	var got struct {
		Authenticated bool      `json:"authenticated"`
		User          auth.User `json:"user"`
		Mode          string    `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Authenticated)
	assert.Equal(t, "Maria", got.User.Name)
	assert.Equal(t, "demo", got.Mode)
}

func TestConfirmRequiresCode(t *testing.T) {
	cmd := NewConfirmCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags([]string{"-email", "a@b.c"}))
}

func TestConfirmDemo(t *testing.T) {
	var out bytes.Buffer
	cmd := NewConfirmCommand(testConfig(t))
	cmd.Out = &out
	require.NoError(t, run(t, cmd, &out, "-email", "a@b.c", "-code", "123456"))
	assert.Equal(t, "Confirmed a@b.c\n", out.String())
}

func TestGoogleDemo(t *testing.T) {
	var out bytes.Buffer
	cmd := NewGoogleCommand(testConfig(t))
	cmd.Out = &out
	require.NoError(t, run(t, cmd, &out))
	assert.Equal(t, "Signed in as Google Demo User <google.demo@nutrinani.com>\n", out.String())
}

func TestGoogleCognitoPrintsServerURL(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	cfg := testConfig(t)
	cfg.Auth.UserPoolID = "us-east-1_pool"
	cfg.Auth.ClientID = "client"
	cfg.Auth.Region = "us-east-1"
	cfg.Auth.PublicURL = "https://app.nutrinani.com/"

	var out bytes.Buffer
	cmd := NewGoogleCommand(cfg)
	cmd.Out = &out
	require.NoError(t, run(t, cmd, &out))
	assert.Equal(t, "Open https://app.nutrinani.com/auth/google in your browser while the server is running\n", out.String())
}

func TestSignOutClearsSession(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	signIn := NewSignInCommand(cfg)
	signIn.Out = &out
	require.NoError(t, run(t, signIn, &out, "-email", "a@b.c", "-password", "pw"))

	signOut := NewSignOutCommand(cfg)
	signOut.Out = &out
	require.NoError(t, run(t, signOut, &out))
	assert.Equal(t, "Signed out\n", out.String())

	whoami := NewWhoAmICommand(cfg)
	whoami.Out = &out
	require.NoError(t, run(t, whoami, &out))
	assert.Equal(t, "Not signed in (demo mode)\n", out.String())
}

func TestToken(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	token := NewTokenCommand(cfg)
	token.Out = &out
	assert.EqualError(t, run(t, token, &out), "not signed in")

	signIn := NewSignInCommand(cfg)
	signIn.Out = &out
	require.NoError(t, run(t, signIn, &out, "-email", "a@b.c", "-password", "pw"))

	require.NoError(t, run(t, token, &out))
	assert.Equal(t, auth.DemoToken+"\n", out.String())
}

func TestEventsListsRecordedOperations(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	cfg := testConfig(t)
	var out bytes.Buffer

	events := NewEventsCommand(cfg)
	events.Out = &out
	require.NoError(t, run(t, events, &out))
	assert.Equal(t, "No events\n", out.String())

	signIn := NewSignInCommand(cfg)
	signIn.Out = &out
	require.NoError(t, run(t, signIn, &out, "-email", "a@b.c", "-password", "pw"))
	require.Error(t, run(t, signIn, &out, "-email", "b@b.c", "-password", ""))

	require.NoError(t, run(t, events, &out, "-status", "failed"))
	assert.Contains(t, out.String(), "b@b.c")
	assert.NotContains(t, out.String(), "a@b.c")
	assert.Contains(t, out.String(), "Showing 1 of 1 events")

	require.NoError(t, run(t, events, &out, "-operation", "sign_in"))
	assert.Contains(t, out.String(), "Showing 2 of 2 events")
}

func TestEventsRejectsUnknownStatus(t *testing.T) {
	cmd := NewEventsCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags([]string{"-status", "maybe"}))
}

func TestFetchSendsBearer(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meals":["oats"]}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.API.BaseURL = srv.URL
	var out bytes.Buffer

	signIn := NewSignInCommand(cfg)
	signIn.Out = &out
	require.NoError(t, run(t, signIn, &out, "-email", "a@b.c", "-password", "pw"))

	fetch := NewFetchCommand(cfg)
	fetch.Out = &out
	require.NoError(t, run(t, fetch, &out, "-method", "post", "-body", `{"name":"oats"}`, "/meals"))

	assert.Equal(t, "Bearer "+auth.DemoToken, gotAuth)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.JSONEq(t, `{"meals":["oats"]}`, out.String())
}

func TestFetchWithoutBaseURL(t *testing.T) {
	var out bytes.Buffer
	cmd := NewFetchCommand(testConfig(t))
	cmd.Out = &out
	assert.EqualError(t, run(t, cmd, &out, "/meals"), "API_BASE_URL is not set")
}

func TestFetchParseFlags(t *testing.T) {
	cmd := NewFetchCommand(testConfig(t))
	assert.Error(t, cmd.ParseFlags(nil))
	assert.Error(t, NewFetchCommand(testConfig(t)).ParseFlags([]string{"-body", "{", "/x"}))
}
