package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/idkeeper/internal/client/api"
)

// Prompt seams, replaced in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// promptSecret reads a password and returns it as a string; the byte
// buffer is wiped before returning.
func (a *App) promptSecret(text string) (string, error) {
	pw, err := getPassword(a.out, text)
	if err != nil {
		return "", err
	}
	defer wipe(pw)
	return string(pw), nil
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return api.ErrNotLoggedIn
	}
	return nil
}

func (a *App) Register(ctx context.Context) error {
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.promptSecret("Password")
	if err != nil {
		return err
	}

	acc, sent, err := a.backend.SignUp(ctx, name, email, password)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Account %s created for %s", acc.ID, acc.Email))
	if sent {
		printlnFn("A verification link has been sent to your email.")
	} else {
		printlnFn("Verification email could not be sent, use resend-verification.")
	}
	return nil
}

func (a *App) VerifyEmail(ctx context.Context) error {
	token, err := a.prompt("Verification token")
	if err != nil {
		return err
	}
	msg, err := a.backend.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	printlnFn(msg)
	return nil
}

func (a *App) ResendVerification(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	msg, err := a.backend.ResendVerification(ctx, email)
	if err != nil {
		return err
	}
	printlnFn(msg)
	return nil
}

// Login runs both sign-in phases: credentials, then the emailed MFA code.
func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.promptSecret("Password")
	if err != nil {
		return err
	}

	msg, err := a.backend.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	printlnFn(msg)

	code, err := a.prompt("MFA code")
	if err != nil {
		return err
	}
	if err := a.backend.VerifyMfa(ctx, email, code); err != nil {
		return err
	}

	a.userName = email
	printlnFn("Logged in as", email)
	return nil
}

func (a *App) Logout(_ context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	a.backend.SetToken("")
	a.userName = ""
	printlnFn("Logged out")
	return nil
}

func (a *App) ForgotPassword(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	msg, err := a.backend.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	printlnFn(msg)
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	token, err := a.prompt("Reset token")
	if err != nil {
		return err
	}
	password, err := a.promptSecret("New password")
	if err != nil {
		return err
	}
	confirm, err := a.promptSecret("Repeat new password")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	msg, err := a.backend.ResetPassword(ctx, token, password)
	if err != nil {
		return err
	}
	printlnFn(msg)
	return nil
}
