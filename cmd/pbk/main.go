package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "pigbank/internal/cli"
	"pigbank/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "pbk",
		Short:        "PigBank CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(&apiBase),
		newStatusCmd(&apiBase),
		newDuesCmd(&apiBase),
		newAdvanceCmd(&apiBase),
		newPayCmd(&apiBase),
		newLoanCmd(&apiBase),
		newScoreCmd(&apiBase),
		newCardCmd(&apiBase),
		newJobCmd(&apiBase),
		newBuyCmd(&apiBase),
		newTimerCmd(&apiBase),
		newDeleteAccountCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a PigBank account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `pbk login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved. You start on day 1 with $100.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to PigBank",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sess, err := cl.LoadSession(); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				if err := newClient(apiBase).Logout(ctx, sess.AccessToken); err != nil {
					printWarn("Server sign-out failed: " + err.Error())
				}
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Ledger(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderLedger(raw)
		},
	}
}

func newDuesCmd(apiBase *string) *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "dues",
		Short: "List upcoming obligations",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Dues(ctx, sess.AccessToken, day)
			if err != nil {
				return err
			}
			return renderDues(raw)
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "probe a hypothetical day instead of today")
	return cmd
}

func newAdvanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Advance to the next day",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).AdvanceDay(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderAdvance(raw)
		},
	}
}

func newPayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pay",
		Short: "Settle a due item",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			label, err := promptChoice("Due", []string{"Rent", "Credit card", "Utilities", "Taxes", "Loan installment"}, "Rent")
			if err != nil {
				return err
			}
			label = canonicalLabel(label)
			loanID := ""
			if label == "Loan installment" {
				loanID, err = promptRequired("Loan id")
				if err != nil {
					return err
				}
			}
			amount, err := promptDollars("Amount (dollars)")
			if err != nil {
				return err
			}
			method, err := promptChoice("Method", []string{"debit", "credit", "savings"}, "debit")
			if err != nil {
				return err
			}
			accountKey := ""
			if method != "credit" {
				accountKey, err = promptRequired("Account key")
				if err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Pay(ctx, sess.AccessToken, label, loanID, method, accountKey, amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Paid %s (%s).", label, formatCents(amount)))
			return renderLedger(raw)
		},
	}
}

func newLoanCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "loan",
		Short: "Apply for a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			principal, err := promptDollars("Principal (dollars)")
			if err != nil {
				return err
			}
			term, err := promptInt64("Term (months)", 1)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).ApplyForLoan(ctx, sess.AccessToken, principal, int(term))
			if err != nil {
				return err
			}
			return renderLoanDecision(raw)
		},
	}
}

func newScoreCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Recompute your credit score",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).RecomputeScore(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			score, _ := asInt64(raw["score"])
			accent.Printf("Credit score: %d\n", score)
			return nil
		},
	}
}

func newCardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "card",
		Short: "Apply for a credit card",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).ApplyForCard(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderCardDecision(raw)
		},
	}
}

func newJobCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "job",
		Short: "Apply for a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			job, err := promptChoice("Job", []string{"parttime", "company", "freelance"}, "parttime")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).SelectJob(ctx, sess.AccessToken, job)
			if err != nil {
				return err
			}
			return renderJobDecision(raw)
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy",
		Short: "Buy from the shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			item, err := promptChoice("Item", []string{"food", "house", "car"}, "food")
			if err != nil {
				return err
			}
			quantity := int64(1)
			if item == "food" {
				quantity, err = promptInt64("Quantity", 1)
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).BuyItem(ctx, sess.AccessToken, item, int(quantity))
			if err != nil {
				return err
			}
			printSuccess("Purchase complete.")
			return renderLedger(raw)
		},
	}
}

func newTimerCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Work session timers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show all timers",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Timers(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderTimers(raw)
		},
	})
	for _, action := range []string{"start", "pause", "reset"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <category>",
			Short: capitalize(action) + " a job timer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := requireSession()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				raw, err := newClient(apiBase).TimerAction(ctx, sess.AccessToken, args[0], action)
				if err != nil {
					return err
				}
				return renderTimerState(raw)
			},
		})
	}
	return cmd
}

func newDeleteAccountCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete your account and ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			confirm, err := promptRequired("Type DELETE to confirm")
			if err != nil {
				return err
			}
			if confirm != "DELETE" {
				printWarn("Aborted.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).DeleteAccount(ctx, sess.AccessToken); err != nil {
				return err
			}
			_ = cl.ClearSession()
			printSuccess("Account deleted.")
			return nil
		},
	}
}
