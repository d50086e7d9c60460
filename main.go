package main

import (
	"fmt"
	"os"

	"github.com/nutrinani/nutrinani/internal/cli"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		if err := entrypoint.Run(cfg, Version); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	name := os.Args[1]
	args := os.Args[2:]
	cfg := config.NewConfig()

	var cmd command
	switch name {
	case "signup":
		cmd = cli.NewSignUpCommand(cfg)
	case "confirm":
		cmd = cli.NewConfirmCommand(cfg)
	case "signin":
		cmd = cli.NewSignInCommand(cfg)
	case "google":
		cmd = cli.NewGoogleCommand(cfg)
	case "signout":
		cmd = cli.NewSignOutCommand(cfg)
	case "whoami":
		cmd = cli.NewWhoAmICommand(cfg)
	case "token":
		cmd = cli.NewTokenCommand(cfg)
	case "events":
		cmd = cli.NewEventsCommand(cfg)
	case "fetch":
		cmd = cli.NewFetchCommand(cfg)

	case "version":
		fmt.Printf("nutrinani %s (%s)\n", Version, Commit)
		return

	case "-h", "--help", "help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  signup    Register an account\n")
	fmt.Fprintf(os.Stderr, "  confirm   Confirm a registration with the emailed code\n")
	fmt.Fprintf(os.Stderr, "  signin    Sign in with email and password\n")
	fmt.Fprintf(os.Stderr, "  google    Sign in with Google\n")
	fmt.Fprintf(os.Stderr, "  signout   Sign out and clear the stored session\n")
	fmt.Fprintf(os.Stderr, "  whoami    Show the signed-in user\n")
	fmt.Fprintf(os.Stderr, "  token     Print the bearer token for API calls\n")
	fmt.Fprintf(os.Stderr, "  events    List recorded auth events\n")
	fmt.Fprintf(os.Stderr, "  fetch     Call the API with the current bearer token\n")
	fmt.Fprintf(os.Stderr, "  version   Print the build version\n")
	fmt.Fprintf(os.Stderr, "\nAuth mode is production when COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID are set, demo otherwise.\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
