package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/urbanquest/internal/common"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errUsage = errors.New("usage")

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

func (a *App) askPassword(prompt string) (string, error) {
	pw, err := getPassword(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// fail prints the displayable reason of err and returns it.
func (a *App) fail(err error) error {
	a.printf("Error: %s\n", common.Message(err))
	return err
}

// Register prompts for the account fields and creates the account.
func (a *App) Register(ctx context.Context) error {
	name, err := a.ask("Enter full name")
	if err != nil {
		return err
	}
	userName, err := a.ask("Enter username")
	if err != nil {
		return err
	}
	email, err := a.ask("Enter email (optional)")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Enter password")
	if err != nil {
		return err
	}

	v, err := a.svc.Register(ctx, name, userName, password, email)
	if err != nil {
		return a.fail(err)
	}
	a.printf("Registered %s.\n", v.UserName)
	return nil
}

// Login authenticates by username, email or email local part. A
// previous console login is closed first.
func (a *App) Login(ctx context.Context) error {
	principal, err := a.ask("Enter username or email")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Enter password")
	if err != nil {
		return err
	}

	v, err := a.svc.Login(ctx, principal, password)
	if err != nil {
		return a.fail(err)
	}

	if a.userName != "" && a.userName != v.UserName {
		a.svc.Logout(ctx, a.userName)
	}
	a.userName = v.UserName
	a.printf("Welcome, %s.\n", v.Name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if a.userName == "" {
		a.printf("Not logged in.\n")
		return nil
	}
	a.svc.Logout(ctx, a.userName)
	a.printf("Logged out %s.\n", a.userName)
	a.userName = ""
	return nil
}

// Passwd changes the logged-in user's password.
func (a *App) Passwd(ctx context.Context) error {
	if a.userName == "" {
		a.printf("Log in first.\n")
		return nil
	}
	oldPassword, err := a.askPassword("Current password")
	if err != nil {
		return err
	}
	newPassword, err := a.askPassword("New password")
	if err != nil {
		return err
	}

	if err := a.svc.ChangePassword(ctx, a.userName, oldPassword, newPassword); err != nil {
		return a.fail(err)
	}
	a.printf("Password changed.\n")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if a.userName == "" {
		a.printf("Not logged in.\n")
		return nil
	}
	s, ok := a.svc.Session(a.userName)
	if !ok {
		a.printf("Not logged in.\n")
		a.userName = ""
		return nil
	}
	a.printf("%s (%s) logged in %s, last active %s\n",
		s.UserName, s.Name, formatTime(s.LoginTime), formatTime(s.LastActivity))
	return nil
}

// Info prints a user record without its digest.
func (a *App) Info(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: info <username>\n")
		return errUsage
	}
	v, err := a.svc.GetUserInfo(ctx, args[0])
	if err != nil {
		return a.fail(err)
	}

	a.printf("Username:   %s\n", v.UserName)
	a.printf("Name:       %s\n", v.Name)
	a.printf("Email:      %s\n", v.Email)
	a.printf("Status:     %s\n", v.Status)
	a.printf("Created:    %s\n", formatTime(v.CreatedAt))
	if v.LastLogin != nil {
		a.printf("Last login: %s\n", formatTime(*v.LastLogin))
	} else {
		a.printf("Last login: never\n")
	}
	return nil
}

// Online lists live sessions, oldest login first.
func (a *App) Online(ctx context.Context) error {
	list := a.svc.ActiveSessions()
	if len(list) == 0 {
		a.printf("No active sessions.\n")
		return nil
	}
	for _, s := range list {
		a.printf("%-20s since %s  idle %s\n", s.UserName, formatTime(s.LoginTime), time.Since(s.LastActivity).Truncate(time.Second))
	}
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st := a.svc.Statistics(ctx)
	a.printf("Users:             %d\n", st.TotalUsers)
	a.printf("Active sessions:   %d/%d\n", st.ActiveSessions, st.MaxSessions)
	a.printf("Cache valid:       %t\n", st.CacheValid)
	a.printf("Throttled entries: %d\n", st.TrackedPrincipals)
	return nil
}

// SetStatus implements lock and unlock.
func (a *App) SetStatus(ctx context.Context, args []string, status models.Status) error {
	if len(args) != 1 {
		a.printf("Usage: %s <username>\n", verbFor(status))
		return errUsage
	}
	v, err := a.svc.SetStatus(ctx, args[0], status)
	if err != nil {
		return a.fail(err)
	}
	if status == models.StatusLocked && v.UserName == a.userName {
		a.userName = ""
	}
	a.printf("%s is now %s.\n", v.UserName, v.Status)
	return nil
}

func verbFor(status models.Status) string {
	if status == models.StatusLocked {
		return "lock"
	}
	return "unlock"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
