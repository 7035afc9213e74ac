package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/review"
)

func (c *cli) mount(ctx context.Context, id string) (*review.Session, error) {
	return review.Mount(ctx, id, c.reviewer,
		review.Config{
			PollInterval: c.review.PollIntervalDuration(),
			NoticeTTL:    c.review.NoticeTTLDuration(),
		},
		review.Deps{Backend: c.client, Logger: c.logger},
	)
}

// withSession mounts id, runs fn against the session, and prints the
// resulting state.
func (c *cli) withSession(cmd *cobra.Command, id string, fn func(ctx context.Context, s *review.Session) error) error {
	format, err := parseOutputFormat(c.output)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := c.mount(ctx, id)
	if err != nil {
		return err
	}
	defer s.Close()

	if fn != nil {
		if err := fn(ctx, s); err != nil {
			return err
		}
	}
	return printState(cmd.OutOrStdout(), format, s.State())
}

func printState(w io.Writer, format outputFormat, st review.State) error {
	app := st.Application
	amount := "-"
	if app.RequestedAmount != nil {
		amount = strconv.FormatFloat(*app.RequestedAmount, 'f', 2, 64)
	}
	rows := [][]string{
		{"Application", app.ID},
		{"Applicant", orDash(app.Name)},
		{"Loan type", orDash(app.LoanType)},
		{"Amount", amount},
		{"Status", string(app.Status)},
		{"Score", strconv.Itoa(app.Score())},
		{"Risk level", string(st.RiskLevel)},
		{"AI decision", string(st.EffectiveAIDecision)},
		{"Human decision", orDash(string(app.HumanDecision))},
		{"Review status", string(st.ReviewStatus)},
		{"Lock state", string(st.LockState)},
		{"Locked by", orDash(app.LockedBy)},
		{"Email", orDash(string(app.EmailStatus))},
		{"Comment", orDash(truncate(app.Comment, 60))},
		{"Can decide", strconv.FormatBool(st.CanDecide)},
		{"Reviewer", st.Reviewer},
	}
	if st.Notice != nil {
		rows = append(rows, []string{"Notice", st.Notice.Message})
	}
	return printOutput(w, format, st, nil, rows)
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show an application and its review state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, args[0], nil)
		},
	}
}

func newDecideCmd(c *cli) *cobra.Command {
	var (
		reason    string
		lock      bool
		sendEmail bool
	)

	cmd := &cobra.Command{
		Use:   "decide <application-id> <approved|rejected|review_required>",
		Short: "Record a decision, optionally locking it and notifying the applicant",
		Long: `Record a reviewer decision. A decision that differs from the AI
recommendation is an override and requires --reason.

With --lock the decision is locked after it is recorded. Locking is final.
With --send-email a manual notification is sent once the decision is locked.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, ok := applications.ParseDecision(args[1])
			if !ok {
				return fmt.Errorf("%w: %q", review.ErrInvalidDecision, args[1])
			}
			if sendEmail && !lock {
				return errors.New("--send-email requires --lock")
			}

			return c.withSession(cmd, args[0], func(ctx context.Context, s *review.Session) error {
				return decide(ctx, cmd.ErrOrStderr(), s, decision, reason, lock, sendEmail)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Justification for overriding the AI recommendation")
	cmd.Flags().BoolVar(&lock, "lock", false, "Lock the decision after recording it")
	cmd.Flags().BoolVar(&sendEmail, "send-email", false, "Send the decision email after locking")

	return cmd
}

func decide(ctx context.Context, stderr io.Writer, s *review.Session, decision applications.Decision, reason string, lock, sendEmail bool) error {
	if err := s.Decide(ctx, decision); err != nil {
		return err
	}

	if pending, ok := s.Dialog().(review.OverrideDialog); ok {
		if strings.TrimSpace(reason) == "" {
			s.CancelOverride()
			return fmt.Errorf("%w: %s overrides the AI recommendation %s", review.ErrReasonRequired, pending.Decision, pending.AIDecision)
		}
		if err := s.ConfirmOverride(ctx, reason); err != nil {
			return err
		}
	}

	if _, ok := s.Dialog().(review.LockDialog); ok {
		if !lock {
			s.CancelLock()
			fmt.Fprintln(stderr, "decision recorded; run again with --lock to lock it")
			return nil
		}
		if err := s.ConfirmLock(ctx, true); err != nil {
			return err
		}
	}

	if pending, ok := s.Dialog().(review.EmailDialog); ok {
		if !sendEmail {
			s.DismissEmail()
			if pending.Error != "" {
				fmt.Fprintln(stderr, pending.Error)
			}
			fmt.Fprintln(stderr, "decision locked; the applicant has not been notified")
			return nil
		}
		return s.SendEmail(ctx)
	}

	return nil
}

func newCommentCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <application-id> <text>",
		Short: "Replace the reviewer comment on an application",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, args[0], func(ctx context.Context, s *review.Session) error {
				return s.SetComment(ctx, args[1])
			})
		},
	}
}

func newRetryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <application-id>",
		Short: "Re-queue analysis for a failed application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, args[0], func(ctx context.Context, s *review.Session) error {
				return s.Retry(ctx)
			})
		},
	}
}

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <application-id>",
		Short: "Follow an application until its analysis completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := c.mount(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			return watch(ctx, cmd.OutOrStdout(), s)
		},
	}
}

// watch prints a line for every status change until the session stops
// polling, the session closes, or ctx is cancelled.
func watch(ctx context.Context, w io.Writer, s *review.Session) error {
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	var last applications.Status
	report := func(st review.State) bool {
		if st.Application.Status != last {
			last = st.Application.Status
			fmt.Fprintf(w, "%s  %-16s score=%d ai=%s\n",
				time.Now().Format(time.TimeOnly),
				last,
				st.Application.Score(),
				orDash(string(st.EffectiveAIDecision)),
			)
		}
		return !st.Polling
	}

	if report(s.State()) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok || report(st) {
				return nil
			}
		}
	}
}

func newNavigateCmd(c *cli, name string) *cobra.Command {
	dir := applications.Next
	short := "Print the id of the next application in queue order"
	if name == "prev" {
		dir = applications.Previous
		short = "Print the id of the previous application in queue order"
	}

	return &cobra.Command{
		Use:   name + " <application-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.mount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			id, ok, err := s.Navigate(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "no %s application\n", dir)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
