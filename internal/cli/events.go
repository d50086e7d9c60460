package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nutrinani/nutrinani/internal/config"
	auditRepo "github.com/nutrinani/nutrinani/internal/database/audit"
	"github.com/nutrinani/nutrinani/internal/entities"
)

// EventsCommand lists recorded auth events, newest first.
type EventsCommand struct {
	Config    *config.Config
	Out       io.Writer
	Email     string
	Operation string
	Status    string
	Limit     int
	Offset    int
}

func NewEventsCommand(cfg *config.Config) *EventsCommand {
	return &EventsCommand{Config: cfg}
}

func (cmd *EventsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	fs.StringVar(&cmd.Email, "email", "", "Only events for this email")
	fs.StringVar(&cmd.Operation, "operation", "", "Only this operation (sign_up, sign_in, sign_out, ...)")
	fs.StringVar(&cmd.Status, "status", "", "Only this status (success or failed)")
	fs.IntVar(&cmd.Limit, "limit", 20, "Number of events to show")
	fs.IntVar(&cmd.Offset, "offset", 0, "Number of events to skip")
	fs.Usage = func() {
		usage("events", "List recorded auth events.",
			"events -limit 50",
			"events -email maria@example.com -status failed")(fs.PrintDefaults)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Limit <= 0 {
		fs.Usage()
		return fmt.Errorf("limit must be positive")
	}
	if cmd.Status != "" && cmd.Status != string(entities.AuthStatusSuccess) && cmd.Status != string(entities.AuthStatusFailed) {
		fs.Usage()
		return fmt.Errorf("unknown status %q", cmd.Status)
	}
	return nil
}

func (cmd *EventsCommand) Run() error {
	s, err := openSession(context.Background(), cmd.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	filter := auditRepo.Filter{
		Email:     cmd.Email,
		Operation: entities.AuthOperation(cmd.Operation),
		Status:    entities.AuthStatus(cmd.Status),
	}
	events, total, err := s.audit.GetEvents(filter, cmd.Limit, cmd.Offset)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	out := output(cmd.Out)
	if len(events) == 0 {
		fmt.Fprintln(out, "No events")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOPERATION\tMODE\tEMAIL\tSTATUS\tDURATION\tERROR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Operation, e.Mode, e.Email, e.Status, e.DurationMs, e.ErrorMsg)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShowing %d of %d events\n", len(events), total)
	return nil
}
