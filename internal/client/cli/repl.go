package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a recording stub.
type execIface interface {
	Accounts(ctx context.Context, args []string) error
	SignUp(ctx context.Context, args []string) error
	Join(ctx context.Context, args []string) error
	Approve(ctx context.Context, args []string) error
	CreateLocal(ctx context.Context, args []string) error
	Devices(ctx context.Context, args []string) error
	RemoveAccount(ctx context.Context, args []string) error

	List(ctx context.Context, args []string) error
	MakeFolder(ctx context.Context, args []string) error
	RemoveFolder(ctx context.Context, args []string) error
	NewNote(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	RemoveNote(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
}

const helpText = `Accounts:
  accounts                 list accounts
  signup                   create a server account with this device
  join                     add this device to an existing server account
  approve <account>        admit a waiting device into an account
  local                    create a local-only account
  devices <account>        list the other devices of an account
  remove <account>         remove an account from this device
Notes:
  (l)ist                   show folders and notes
  mkdir <account>          create a folder
  rmdir <folder>           delete a folder
  new <folder>             create a note
  show <note>              print a note
  edit <note>              replace the content of a note
  rm <note>                delete a note
  sync                     synchronize now
  exit | quit              leave the program`

// runREPL reads commands line by line from reader and dispatches them to a
// until EOF, exit or quit. Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gn %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var run func(context.Context, []string) error
		switch cmd {
		case "help":
			printlnFn(helpText)
			continue
		case "accounts":
			run = a.Accounts
		case "signup":
			run = a.SignUp
		case "join":
			run = a.Join
		case "approve":
			run = a.Approve
		case "local":
			run = a.CreateLocal
		case "devices":
			run = a.Devices
		case "remove":
			run = a.RemoveAccount
		case "l", "list":
			run = a.List
		case "mkdir":
			run = a.MakeFolder
		case "rmdir":
			run = a.RemoveFolder
		case "new":
			run = a.NewNote
		case "show":
			run = a.Show
		case "edit":
			run = a.Edit
		case "rm":
			run = a.RemoveNote
		case "sync":
			run = a.Sync
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err := run(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
