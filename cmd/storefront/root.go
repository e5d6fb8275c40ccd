package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const appName = "storefront"

type appKey struct{}

// cli owns the command tree and the app opened by the executed command.
type cli struct {
	root *cobra.Command
	app  *app
}

func newCLI() *cli {
	c := &cli{}
	c.root = rootCmd(func(a *app) { c.app = a })
	return c
}

// execute runs the command tree and closes the app afterwards. Cobra skips
// post-run hooks when a command fails, so the close happens here.
func (c *cli) execute(ctx context.Context) error {
	defer c.close()
	return c.root.ExecuteContext(ctx)
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func rootCmd(opened func(*app)) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Storefront shopping client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), envFile)
			if err != nil {
				return err
			}
			opened(a)
			cmd.SetContext(withApp(cmd.Context(), a))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")

	cmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		registerCmd(),
		forgotCmd(),
		passwdCmd(),
		cartCmd(),
		addressCmd(),
		checkoutCmd(),
		ordersCmd(),
	)
	return cmd
}

// prompter reads answers line by line from the command's input.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

func (p *prompter) ask(label string) (string, bool) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// askIfEmpty prompts only when v was not given on the command line.
func (p *prompter) askIfEmpty(v *string, label string) {
	if *v != "" {
		return
	}
	if answer, ok := p.ask(label); ok {
		*v = answer
	}
}
