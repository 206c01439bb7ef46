package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	VerifyEmail(ctx context.Context) error
	ResendVerification(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	Me(ctx context.Context) error
	Update(ctx context.Context) error
	Users(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Health(ctx context.Context) error
}

const (
	helpAnonymous = "Available commands: register, verify-email, resend-verification, login, forgot-password, reset-password, health, exit"
	helpLoggedIn  = "Available commands: me, update, users, delete <id>, health, logout, exit"
)

// runREPL reads commands from reader until EOF or "exit"/"quit". Handler
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("idk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpAnonymous)
			}

		case "register":
			cmdErr = a.Register(ctx)
		case "verify-email":
			cmdErr = a.VerifyEmail(ctx)
		case "resend-verification":
			cmdErr = a.ResendVerification(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "forgot-password":
			cmdErr = a.ForgotPassword(ctx)
		case "reset-password":
			cmdErr = a.ResetPassword(ctx)
		case "me":
			cmdErr = a.Me(ctx)
		case "update":
			cmdErr = a.Update(ctx)
		case "users":
			cmdErr = a.Users(ctx)
		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			cmdErr = a.Delete(ctx, args[0])
		case "health":
			cmdErr = a.Health(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
