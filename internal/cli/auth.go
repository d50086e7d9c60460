package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
)

// PasswordEnv is read when -password is not given, keeping it out of shell history.
const PasswordEnv = "NUTRINANI_PASSWORD"

func passwordOrEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(PasswordEnv)
}

func describeError(err error) error {
	if code := auth.ErrorCode(err); code != "" {
		return fmt.Errorf("%s (%s)", auth.ErrorMessage(err), code)
	}
	return errors.New(auth.ErrorMessage(err))
}

type SignUpCommand struct {
	Config   *config.Config
	Out      io.Writer
	Email    string
	Password string
	Name     string
}

func NewSignUpCommand(cfg *config.Config) *SignUpCommand {
	return &SignUpCommand{Config: cfg}
}

func (cmd *SignUpCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (or set "+PasswordEnv+")")
	fs.StringVar(&cmd.Name, "name", "", "Display name")
	fs.Usage = func() {
		usage("signup", "Register an account.", "signup -email maria@example.com -name Maria")(fs.PrintDefaults)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.Password = passwordOrEnv(cmd.Password)
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("email is required")
	}
	return nil
}

func (cmd *SignUpCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.facade.Auth.SignUp(ctx, cmd.Email, cmd.Password, cmd.Name); err != nil {
		return describeError(err)
	}

	out := output(cmd.Out)
	if s.facade.Auth.Mode() == config.AuthModeDemo {
		fmt.Fprintf(out, "Registered and signed in as %s (demo mode)\n", cmd.Email)
		return nil
	}
	fmt.Fprintf(out, "Registered %s. Check your email for a verification code, then run: confirm -email %s -code <code>\n", cmd.Email, cmd.Email)
	return nil
}

type ConfirmCommand struct {
	Config *config.Config
	Out    io.Writer
	Email  string
	Code   string
}

func NewConfirmCommand(cfg *config.Config) *ConfirmCommand {
	return &ConfirmCommand{Config: cfg}
}

func (cmd *ConfirmCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Code, "code", "", "Verification code (required)")
	fs.Usage = func() {
		usage("confirm", "Confirm a registration with the emailed code.", "confirm -email maria@example.com -code 123456")(fs.PrintDefaults)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Email == "" || cmd.Code == "" {
		fs.Usage()
		return fmt.Errorf("email and code are required")
	}
	return nil
}

func (cmd *ConfirmCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.facade.Auth.ConfirmSignUp(ctx, cmd.Email, cmd.Code); err != nil {
		return describeError(err)
	}
	fmt.Fprintf(output(cmd.Out), "Confirmed %s\n", cmd.Email)
	return nil
}

type SignInCommand struct {
	Config   *config.Config
	Out      io.Writer
	Email    string
	Password string
}

func NewSignInCommand(cfg *config.Config) *SignInCommand {
	return &SignInCommand{Config: cfg}
}

func (cmd *SignInCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (or set "+PasswordEnv+")")
	fs.Usage = func() {
		usage("signin", "Sign in with email and password.", "signin -email maria@example.com")(fs.PrintDefaults)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.Password = passwordOrEnv(cmd.Password)
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("email is required")
	}
	return nil
}

func (cmd *SignInCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.facade.Auth.SignIn(ctx, cmd.Email, cmd.Password)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintf(output(cmd.Out), "Signed in as %s\n", displayName(user))
	return nil
}

type GoogleCommand struct {
	Config *config.Config
	Out    io.Writer
}

func NewGoogleCommand(cfg *config.Config) *GoogleCommand {
	return &GoogleCommand{Config: cfg}
}

func (cmd *GoogleCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("google", flag.ExitOnError)
	fs.Usage = func() {
		usage("google", "Sign in with Google. In production mode this prints the URL to open.")(fs.PrintDefaults)
	}
	return fs.Parse(args)
}

func (cmd *GoogleCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	out := output(cmd.Out)

	// The redirect returns to the server, which holds the pending sign-in.
	if s.facade.Auth.Mode() == config.AuthModeCognito {
		fmt.Fprintf(out, "Open %s/auth/google in your browser while the server is running\n",
			strings.TrimRight(cmd.Config.Auth.PublicURL, "/"))
		return nil
	}

	nav := &auth.Navigation{}
	if err := s.facade.Auth.SignInWithGoogle(auth.WithBrowser(ctx, nav)); err != nil {
		return describeError(err)
	}
	if user := s.facade.Auth.CurrentUser(ctx); user != nil {
		fmt.Fprintf(out, "Signed in as %s\n", displayName(user))
	}
	return nil
}

type SignOutCommand struct {
	Config *config.Config
	Out    io.Writer
}

func NewSignOutCommand(cfg *config.Config) *SignOutCommand {
	return &SignOutCommand{Config: cfg}
}

func (cmd *SignOutCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("signout", flag.ExitOnError)
	fs.Usage = func() {
		usage("signout", "Sign out and clear the stored session.")(fs.PrintDefaults)
	}
	return fs.Parse(args)
}

func (cmd *SignOutCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	nav := &auth.Navigation{}
	if err := s.facade.Auth.SignOut(auth.WithBrowser(ctx, nav)); err != nil {
		return describeError(err)
	}

	out := output(cmd.Out)
	fmt.Fprintln(out, "Signed out")
	if target := nav.Target(); target != "" {
		fmt.Fprintf(out, "To end the hosted sign-in session too, open %s\n", target)
	}
	return nil
}

type WhoAmICommand struct {
	Config *config.Config
	Out    io.Writer
	JSON   bool
}

func NewWhoAmICommand(cfg *config.Config) *WhoAmICommand {
	return &WhoAmICommand{Config: cfg}
}

func (cmd *WhoAmICommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.BoolVar(&cmd.JSON, "json", false, "Print the user as JSON")
	fs.Usage = func() {
		usage("whoami", "Show the signed-in user.")(fs.PrintDefaults)
	}
	return fs.Parse(args)
}

func (cmd *WhoAmICommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	user := s.facade.Auth.CurrentUser(ctx)
	out := output(cmd.Out)

	if cmd.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"authenticated": user != nil,
			"user":          user,
			"mode":          s.facade.Auth.Mode(),
		})
	}

	if user == nil {
		fmt.Fprintf(out, "Not signed in (%s mode)\n", s.facade.Auth.Mode())
		return nil
	}
	fmt.Fprintf(out, "%s (%s mode)\n", displayName(user), s.facade.Auth.Mode())
	return nil
}

type TokenCommand struct {
	Config *config.Config
	Out    io.Writer
}

func NewTokenCommand(cfg *config.Config) *TokenCommand {
	return &TokenCommand{Config: cfg}
}

func (cmd *TokenCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	fs.Usage = func() {
		usage("token", "Print the bearer token for API calls.", "token")(fs.PrintDefaults)
	}
	return fs.Parse(args)
}

func (cmd *TokenCommand) Run() error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	token, ok := s.facade.Auth.AccessToken(ctx)
	if !ok {
		return errors.New("not signed in")
	}
	fmt.Fprintln(output(cmd.Out), token)
	return nil
}

func displayName(u *auth.User) string {
	if u.Name != "" && u.Name != u.Email {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	return u.Email
}
