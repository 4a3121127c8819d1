package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/urbanquest/internal/models"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	touch(ctx context.Context)
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Passwd(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Info(ctx context.Context, args []string) error
	Online(ctx context.Context) error
	Stats(ctx context.Context) error
	SetStatus(ctx context.Context, args []string, status models.Status) error
}

// runREPL reads commands from reader until EOF, "exit"/"quit" or ctx
// cancellation (checked between commands).
//
// Commands:
//
//	help              show available commands
//	register          create an account
//	login             authenticate and open a session
//	logout            close the console's session
//	passwd            change the logged-in user's password
//	whoami            show the console's session
//	info <user>       show a user record
//	online            list live sessions
//	stats             show service statistics
//	lock <user>       lock an account and end its session
//	unlock <user>     unlock an account
//	exit | quit       leave the program
//
// Handler errors are not acted on here; handlers print their own
// messages.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("authctl%s> ", statusFn()))

		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		a.touch(ctx)

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, passwd, logout, info <user>, online, stats, lock <user>, unlock <user>, register, login, exit")
			} else {
				printlnFn("Available commands: register, login, info <user>, online, stats, lock <user>, unlock <user>, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "passwd":
			_ = a.Passwd(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "info":
			_ = a.Info(ctx, args)

		case "online":
			_ = a.Online(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "lock":
			_ = a.SetStatus(ctx, args, models.StatusLocked)

		case "unlock":
			_ = a.SetStatus(ctx, args, models.StatusActive)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
