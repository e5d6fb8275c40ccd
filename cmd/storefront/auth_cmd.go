package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			p := newPrompter(cmd)
			p.askIfEmpty(&email, "Email")
			p.askIfEmpty(&password, "Password")

			sess, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", sess.User.Name, sess.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			appFrom(cmd).session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if !a.session.Session().IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			sess, err := a.session.RefreshProfile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", sess.User.Name, sess.User.Email, sess.User.Role)
			return nil
		},
	}
}

func passwdCmd() *cobra.Command {
	var current, next, confirm string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			p.askIfEmpty(&current, "Current password")
			p.askIfEmpty(&next, "New password")
			p.askIfEmpty(&confirm, "Confirm new password")

			msg, err := appFrom(cmd).session.ChangePassword(cmd.Context(), current, next, confirm)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), orDefault(msg, "Password changed"))
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "Current password")
	cmd.Flags().StringVar(&next, "new", "", "New password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "New password again")
	return cmd
}

func registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and verify it with the emailed code",
		Long: `Create an account. The API emails a one-time code; enter it at the
prompt. Type "resend" to request a new code once the cooldown is over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			p := newPrompter(cmd)
			out := cmd.OutOrStdout()
			defer a.session.AbandonRegistration()

			a.session.BeginRegistration()
			p.askIfEmpty(&name, "Name")
			p.askIfEmpty(&email, "Email")
			p.askIfEmpty(&password, "Password")

			ch, err := a.session.Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "A verification code was sent to %s\n", ch.Email)

			for {
				answer, ok := p.ask("Code (or \"resend\")")
				if !ok {
					return errors.New("registration not completed")
				}
				if strings.EqualFold(answer, "resend") {
					printResend(out, func() (domain.OnboardingChallenge, error) {
						return a.session.ResendCode(cmd.Context(), "")
					}, a.session.RegistrationChallenge)
					continue
				}

				sess, err := a.session.VerifyCode(cmd.Context(), "", answer)
				if err != nil {
					fmt.Fprintln(out, userMessage(err))
					continue
				}
				fmt.Fprintf(out, "Welcome, %s\n", sess.User.Name)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func forgotCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Reset a forgotten password with an emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			p := newPrompter(cmd)
			out := cmd.OutOrStdout()
			defer a.session.AbandonRecovery()

			a.session.BeginRecovery()
			p.askIfEmpty(&email, "Email")
			ch, err := a.session.RequestReset(cmd.Context(), email)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "A reset code was sent to %s\n", ch.Email)

			for {
				code, ok := p.ask("Code (or \"resend\")")
				if !ok {
					return errors.New("password reset not completed")
				}
				if strings.EqualFold(code, "resend") {
					printResend(out, func() (domain.OnboardingChallenge, error) {
						return a.session.ResendResetCode(cmd.Context(), "")
					}, a.session.RecoveryChallenge)
					continue
				}
				next, _ := p.ask("New password")
				confirm, _ := p.ask("Confirm new password")

				msg, err := a.session.SubmitReset(cmd.Context(), "", code, next, confirm)
				if err != nil {
					fmt.Fprintln(out, userMessage(err))
					continue
				}
				fmt.Fprintln(out, orDefault(msg, "Password reset"))
				fmt.Fprintln(out, "You can now log in with the new password")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func printResend(out io.Writer, resend func() (domain.OnboardingChallenge, error),
	current func() (domain.OnboardingChallenge, bool)) {
	ch, err := resend()
	if errors.Is(err, session.ErrCooldownActive) {
		if c, ok := current(); ok {
			fmt.Fprintf(out, "Please wait %ds before requesting a new code\n", c.ResendCooldownSecondsRemaining)
			return
		}
	}
	if err != nil {
		fmt.Fprintln(out, userMessage(err))
		return
	}
	fmt.Fprintf(out, "A new code was sent to %s\n", ch.Email)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
