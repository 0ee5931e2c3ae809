package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. The real App type
// satisfies it; tests provide a stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Create(ctx context.Context) error
	Edit(ctx context.Context) error
	Delete(ctx context.Context) error
	Promo(ctx context.Context) error
	Comment(ctx context.Context) error
	Image(ctx context.Context) error
	Sync(ctx context.Context) error
	Reconcile(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads a line, parses the first token as the command and dispatches
// to methods on 'a'. The loop exits on scanner EOF or "exit"/"quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sk> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ist, show, create, edit, delete, promo, comment, image, sync, reconcile, logout, exit")
			} else {
				printlnFn("Available commands: login, (l)ist, show, comment, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "l", "list":
			err = a.List(ctx)

		case "show":
			err = a.Show(ctx)

		case "create":
			err = a.Create(ctx)

		case "edit":
			err = a.Edit(ctx)

		case "delete":
			err = a.Delete(ctx)

		case "promo":
			err = a.Promo(ctx)

		case "comment":
			err = a.Comment(ctx)

		case "image":
			err = a.Image(ctx)

		case "sync":
			err = a.Sync(ctx)

		case "reconcile":
			err = a.Reconcile(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
