package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/idkeeper/internal/client/api"
)

func formatAccount(acc api.Account) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", acc.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", acc.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", acc.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", acc.Role)
	fmt.Fprintf(tw, "Verified:\t%t\n", acc.IsVerified)
	fmt.Fprintf(tw, "Created:\t%s\n", acc.CreatedAt.Format("2006-01-02 15:04:05"))
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) Me(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	acc, err := a.backend.Me(ctx)
	if err != nil {
		return err
	}
	printlnFn(formatAccount(acc))
	return nil
}

// Update asks for each field; an empty answer leaves the field unchanged.
func (a *App) Update(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	var patch api.ProfilePatch

	name, err := a.prompt("New name (empty to keep)")
	if err != nil {
		return err
	}
	if name != "" {
		patch.Name = &name
	}

	email, err := a.prompt("New email (empty to keep)")
	if err != nil {
		return err
	}
	if email != "" {
		patch.Email = &email
	}

	password, err := a.promptSecret("New password (empty to keep)")
	if err != nil {
		return err
	}
	if password != "" {
		patch.Password = &password
	}

	if patch.Name == nil && patch.Email == nil && patch.Password == nil {
		return errors.New("nothing to update")
	}

	acc, err := a.backend.UpdateMe(ctx, patch)
	if err != nil {
		return err
	}
	if patch.Email != nil {
		a.userName = acc.Email
	}
	printlnFn("Profile updated")
	printlnFn(formatAccount(acc))
	return nil
}

func (a *App) Users(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	list, err := a.backend.Users(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No users")
		return nil
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tVERIFIED")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.IsVerified)
	}
	_ = tw.Flush()
	printlnFn(strings.TrimRight(b.String(), "\n"))
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.backend.DeleteUser(ctx, id); err != nil {
		return err
	}
	printlnFn("User deleted:", id)
	return nil
}

func (a *App) Health(ctx context.Context) error {
	h, err := a.backend.Health(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}
	a.setMode(ModeOnline)
	printlnFn(fmt.Sprintf("%s (%s), store %s, uptime %s", h.Status, h.Environment, h.Store, h.Uptime))
	return nil
}
