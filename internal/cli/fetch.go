package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/nutrinani/nutrinani/internal/api"
	"github.com/nutrinani/nutrinani/internal/config"
)

// FetchCommand calls the business API with the signed-in user's token.
type FetchCommand struct {
	Config *config.Config
	Out    io.Writer
	Method string
	Body   string
	Path   string
}

func NewFetchCommand(cfg *config.Config) *FetchCommand {
	return &FetchCommand{Config: cfg}
}

func (cmd *FetchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	fs.StringVar(&cmd.Method, "method", "GET", "HTTP method")
	fs.StringVar(&cmd.Body, "body", "", "JSON request body")
	fs.Usage = func() {
		usage("fetch", "Call the API with the current bearer token and print the JSON response.",
			"fetch /meals",
			`fetch -method POST -body '{"name":"oats"}' /meals`)(fs.PrintDefaults)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("exactly one path is required")
	}
	cmd.Path = fs.Arg(0)
	cmd.Method = strings.ToUpper(cmd.Method)
	if cmd.Body != "" && !json.Valid([]byte(cmd.Body)) {
		return fmt.Errorf("body is not valid JSON")
	}
	return nil
}

func (cmd *FetchCommand) Run() error {
	if api.IsDemoMode(cmd.Config.API.BaseURL) {
		return errors.New("API_BASE_URL is not set")
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	client := api.NewClient(cmd.Config.API.BaseURL, api.WithTokenSource(s.facade.Auth))

	req := &api.Request{Method: cmd.Method}
	if cmd.Body != "" {
		req.Body = json.RawMessage(cmd.Body)
	}

	result, err := api.FetchJSON[any](ctx, client, cmd.Path, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(output(cmd.Out))
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
