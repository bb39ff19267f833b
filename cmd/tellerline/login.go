// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tellerline/tellerline/internal/auth"
)

// errLoginAborted is returned when input ends or the process is interrupted
// before a successful login.
var errLoginAborted = errors.New("login aborted")

// errLockedOut is returned when the account is locked.
var errLockedOut = errors.New("account locked")

// loginConfig holds configuration for the login command.
type loginConfig struct {
	email string
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Prompt for a password and sign in. Wrong passwords can be retried until
the account is locked. An invalid email is asked for again. Input ending
or Ctrl-C before a successful login aborts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "account email (prompted when empty)")

	return cmd
}

// runLogin executes the login command. Cancelling the app context, for
// example with Ctrl-C, abandons any pending prompt and aborts the login.
func runLogin(cmd *cobra.Command, lc *loginConfig) error {
	cfg, logger := loadConfig(cmd)
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return loginLoop(a.Context(), cmd, a.service, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), lc.email)
}

// loginLoop prompts until a login succeeds, the account locks, input ends
// or ctx is done. An invalid email is asked for again.
func loginLoop(ctx context.Context, cmd *cobra.Command, service *auth.Service, in *prompter, email string) error {
	for {
		if email == "" {
			var err error
			if email, err = in.line(ctx, "Email: "); err != nil {
				return errLoginAborted
			}
		}

		password, err := in.secret(ctx, "Password: ")
		if err != nil {
			return errLoginAborted
		}

		// The handle resolves on its own when ctx is cancelled.
		session, err := service.LoginAsync(ctx, email, password).Await(context.Background())
		if err == nil {
			cmd.Printf("Welcome, %s. Session %s expires at %s.\n",
				session.Name, session.ID, session.ExpiresAt.Format("15:04:05"))
			return nil
		}

		cmd.Println(auth.UserMessage(err))

		var (
			valErr   *auth.ValidationError
			authErr  *auth.AuthenticationError
			lockErr  *auth.LockoutError
			infraErr *auth.InfrastructureError
		)
		switch {
		case errors.As(err, &valErr) && valErr.Field == "email":
			email = ""
		case errors.As(err, &lockErr):
			return errLockedOut
		case errors.As(err, &authErr) && authErr.LockoutSeconds > 0:
			return errLockedOut
		case errors.As(err, &infraErr):
			if infraErr.Interrupted && ctx.Err() != nil {
				return errLoginAborted
			}
			return err
		}
	}
}

// prompter reads answers from an input stream. Secrets are read without
// echo when the input is a terminal. Reads run on their own goroutine so a
// cancelled context can abandon them; the prompter is not usable after that.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

type answer struct {
	text string
	err  error
}

// await waits for read or for ctx, whichever comes first.
func await(ctx context.Context, read func() (string, error)) (string, error) {
	ch := make(chan answer, 1)
	go func() {
		text, err := read()
		ch <- answer{text, err}
	}()
	select {
	case a := <-ch:
		return a.text, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *prompter) line(ctx context.Context, prompt string) (string, error) {
	_, _ = fmt.Fprint(p.out, prompt)
	return await(ctx, p.readLine)
}

func (p *prompter) readLine() (string, error) {
	s, err := p.reader.ReadString('\n')
	if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(ctx context.Context, prompt string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.line(ctx, prompt)
	}
	fd := int(f.Fd())

	// ReadPassword turns echo off; put the terminal back if it is abandoned.
	state, err := term.GetState(fd)
	if err != nil {
		return "", err
	}
	_, _ = fmt.Fprint(p.out, prompt)
	text, err := await(ctx, func() (string, error) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	})
	if ctx.Err() != nil {
		_ = term.Restore(fd, state)
	}
	_, _ = fmt.Fprintln(p.out)
	return text, err
}
