// Package cli provides the interactive idkeeper command-line client.
//
// It wires configuration and the HTTP API client into a REPL. A background
// watcher polls the server health endpoint and switches the prompt between
// online and offline mode.
//
// Account commands:
//   - register, verify-email, resend-verification
//   - login (prompts for the emailed MFA code), logout
//   - forgot-password, reset-password
//   - me, update, users, delete <id>
//   - health, exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
