package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	ListFiles(ctx context.Context) error
	Upload(ctx context.Context, path string) error
	NewVersion(ctx context.Context, fileID, path string) error
	Versions(ctx context.Context, fileID string) error
	Share(ctx context.Context, fileID string) error
	Shares(ctx context.Context, fileID string) error
	Received(ctx context.Context) error
	Accept(ctx context.Context, shareID string) error
	Reject(ctx context.Context, shareID string) error
	Revoke(ctx context.Context, shareID string) error
	RevokeAll(ctx context.Context, fileID string) error
	CreateGroup(ctx context.Context, name string) error
	AddGroupMember(ctx context.Context, groupID, userID string) error
	Fetch(ctx context.Context, fileID string) error
	Transfers(ctx context.Context) error
	PauseTransfer(id string) error
	ResumeTransfer(id string) error
	CancelTransfer(id string) error
	RetryTransfer(id string) error
	DismissTransfer(id string) error
}

// runREPL reads a line from the scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF, ctx cancellation, or when
// the user types "exit" or "quit".
//
// Command handlers report their own errors; the loop only prints the error
// and keeps going, so a failed command never kills the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		printlnFn(fmt.Sprintf("privora [%s] > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Files:     files, upload <path>, newversion <file-id> <path>, versions <file-id>")
				printlnFn("Sharing:   share <file-id>, shares <file-id>, received, accept <share-id>, reject <share-id>, revoke <share-id>, revokeall <file-id>")
				printlnFn("Groups:    group create <name>, group add <group-id> <user-id>")
				printlnFn("Transfers: fetch <file-id>, transfers, pause <id>, resume <id>, cancel <id>, retry <id>, dismiss <id>")
				printlnFn("Other:     exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "f", "files":
			err = a.ListFiles(ctx)

		case "upload":
			if len(args) == 0 {
				printlnFn("Usage: upload <path>")
				continue
			}
			err = a.Upload(ctx, args[0])

		case "newversion":
			if len(args) < 2 {
				printlnFn("Usage: newversion <file-id> <path>")
				continue
			}
			err = a.NewVersion(ctx, args[0], args[1])

		case "versions":
			if len(args) == 0 {
				printlnFn("Usage: versions <file-id>")
				continue
			}
			err = a.Versions(ctx, args[0])

		case "share":
			if len(args) == 0 {
				printlnFn("Usage: share <file-id>")
				continue
			}
			err = a.Share(ctx, args[0])

		case "shares":
			if len(args) == 0 {
				printlnFn("Usage: shares <file-id>")
				continue
			}
			err = a.Shares(ctx, args[0])

		case "received":
			err = a.Received(ctx)

		case "accept":
			if len(args) == 0 {
				printlnFn("Usage: accept <share-id>")
				continue
			}
			err = a.Accept(ctx, args[0])

		case "reject":
			if len(args) == 0 {
				printlnFn("Usage: reject <share-id>")
				continue
			}
			err = a.Reject(ctx, args[0])

		case "revoke":
			if len(args) == 0 {
				printlnFn("Usage: revoke <share-id>")
				continue
			}
			err = a.Revoke(ctx, args[0])

		case "revokeall":
			if len(args) == 0 {
				printlnFn("Usage: revokeall <file-id>")
				continue
			}
			err = a.RevokeAll(ctx, args[0])

		case "group":
			switch {
			case len(args) >= 2 && args[0] == "create":
				err = a.CreateGroup(ctx, args[1])
			case len(args) >= 3 && args[0] == "add":
				err = a.AddGroupMember(ctx, args[1], args[2])
			default:
				printlnFn("Usage: group create <name> | group add <group-id> <user-id>")
			}

		case "fetch":
			if len(args) == 0 {
				printlnFn("Usage: fetch <file-id>")
				continue
			}
			err = a.Fetch(ctx, args[0])

		case "t", "transfers":
			err = a.Transfers(ctx)

		case "pause":
			if len(args) == 0 {
				printlnFn("Usage: pause <transfer-id>")
				continue
			}
			err = a.PauseTransfer(args[0])

		case "resume":
			if len(args) == 0 {
				printlnFn("Usage: resume <transfer-id>")
				continue
			}
			err = a.ResumeTransfer(args[0])

		case "cancel":
			if len(args) == 0 {
				printlnFn("Usage: cancel <transfer-id>")
				continue
			}
			err = a.CancelTransfer(args[0])

		case "retry":
			if len(args) == 0 {
				printlnFn("Usage: retry <transfer-id>")
				continue
			}
			err = a.RetryTransfer(args[0])

		case "dismiss":
			if len(args) == 0 {
				printlnFn("Usage: dismiss <transfer-id>")
				continue
			}
			err = a.DismissTransfer(args[0])

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
