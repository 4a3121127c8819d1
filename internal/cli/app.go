package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/urbanquest/internal/models"
	"github.com/dmitrijs2005/urbanquest/internal/services"
)

// AuthService is the service surface the console drives.
type AuthService interface {
	Register(ctx context.Context, name, username, password, email string) (models.UserView, error)
	Login(ctx context.Context, principal, password string) (models.UserView, error)
	Logout(ctx context.Context, username string) bool
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	GetUserInfo(ctx context.Context, username string) (models.UserView, error)
	SetStatus(ctx context.Context, username string, status models.Status) (models.UserView, error)
	Touch(ctx context.Context, username string) bool
	Session(username string) (models.Session, bool)
	ActiveSessions() []models.Session
	Statistics(ctx context.Context) services.Statistics
}

// App is one console session. It remembers which account is logged in
// through this console.
type App struct {
	svc      AuthService
	reader   *bufio.Reader
	out      io.Writer
	userName string
}

func NewApp(svc AuthService, in io.Reader, out io.Writer) *App {
	return &App{svc: svc, reader: bufio.NewReader(in), out: out}
}

// Run blocks in the REPL until the user exits, input ends or ctx is
// cancelled. The console's session is closed on the way out.
func (a *App) Run(ctx context.Context) {
	a.printf("Welcome to authctl (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader)

	if a.userName != "" {
		a.svc.Logout(context.WithoutCancel(ctx), a.userName)
		a.userName = ""
	}
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return "(" + a.userName + ")"
}

// touch refreshes the console user's session before a command runs. A
// session that disappeared (evicted, or the account was locked) logs the
// console out.
func (a *App) touch(ctx context.Context) {
	if a.userName == "" {
		return
	}
	if !a.svc.Touch(ctx, a.userName) {
		a.printf("Session for %s has ended.\n", a.userName)
		a.userName = ""
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
