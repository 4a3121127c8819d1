// Package cli provides authctl, the interactive operator console for the
// credential manager.
//
// The console drives an AuthService in-process: operators can register
// accounts, log in and out, change passwords, inspect users and live
// sessions, and lock or unlock accounts. Passwords are read without echo
// when stdin is a terminal.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or ctx is cancelled. See runREPL for the command list.
package cli
