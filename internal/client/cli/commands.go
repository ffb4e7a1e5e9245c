package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
)

var errUsage = errors.New("usage")

// argID parses the single numeric argument of a command.
func argID(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	return id, nil
}

func (a *App) prompt(text string) (string, error) {
	return GetSimpleText(a.reader, text, a.out)
}

// promptDefault returns def when the answer is empty.
func (a *App) promptDefault(text, def string) (string, error) {
	v, err := a.prompt(fmt.Sprintf("%s [%s]", text, def))
	if err != nil || v != "" {
		return v, err
	}
	return def, nil
}

func (a *App) Accounts(ctx context.Context, args []string) error {
	writeAccounts(a.out, a.syncer.Tree().Get())
	return nil
}

func (a *App) SignUp(ctx context.Context, args []string) error {
	server, err := a.promptDefault("Server URL", a.config.ServerURL)
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	if err := a.accounts.SendCode(ctx, server, email); err != nil {
		return err
	}
	code, err := GetSecret(a.reader, "Code from the email", a.out)
	if err != nil {
		return err
	}
	name, err := a.prompt("Account name (empty to use the email)")
	if err != nil {
		return err
	}

	id, err := a.accounts.SignUp(ctx, name, server, email, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %d created\n", id)
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	server, err := a.promptDefault("Server URL", a.config.ServerURL)
	if err != nil {
		return err
	}
	email, err := a.prompt("Email of the existing account")
	if err != nil {
		return err
	}
	name, err := a.prompt("Account name (empty to use the email)")
	if err != nil {
		return err
	}

	p, err := a.accounts.RequestVerification(ctx, name, server, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "On a paired device run 'approve <account>' and enter this key:\n%s\nWaiting for approval...\n", p.Pubkey)

	id, err := a.accounts.WaitVerification(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device approved, account %d added\n", id)
	return nil
}

func (a *App) Approve(ctx context.Context, args []string) error {
	id, err := argID(args, "approve <account>")
	if err != nil {
		return err
	}
	pubkey, err := a.prompt("Key shown on the new device")
	if err != nil {
		return err
	}
	if err := a.accounts.ApproveDevice(ctx, id, pubkey); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Device approved")
	return nil
}

func (a *App) CreateLocal(ctx context.Context, args []string) error {
	name, err := a.prompt("Account name")
	if err != nil {
		return err
	}
	id, err := a.accounts.CreateLocal(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %d created\n", id)
	return nil
}

func (a *App) Devices(ctx context.Context, args []string) error {
	id, err := argID(args, "devices <account>")
	if err != nil {
		return err
	}
	list, err := a.accounts.Devices(ctx, id)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No other devices")
	}
	for _, d := range list {
		fmt.Fprintf(a.out, "[%d] %s\n", d.ID, d.Pubkey)
	}
	return nil
}

func (a *App) RemoveAccount(ctx context.Context, args []string) error {
	id, err := argID(args, "remove <account>")
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Remove account %d and all its notes from this device?", id), a.out)
	if err != nil || !ok {
		return err
	}

	var remote bool
	for _, at := range a.syncer.Tree().Get().Accounts {
		if at.Account.ID == id {
			remote = at.Account.Kind == models.KindRemote
		}
	}
	leave := false
	if remote {
		if leave, err = Confirm(a.reader, "Also remove this device from the server account?", a.out); err != nil {
			return err
		}
	}

	if err := a.accounts.RemoveAccount(ctx, id, leave); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account removed")
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	writeTree(a.out, a.syncer.Tree().Get())
	a.markSeen()
	return nil
}

func (a *App) MakeFolder(ctx context.Context, args []string) error {
	id, err := argID(args, "mkdir <account>")
	if err != nil {
		return err
	}
	name, err := a.prompt("Folder name")
	if err != nil {
		return err
	}
	folderID, err := a.notes.CreateFolder(ctx, id, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Folder %d created\n", folderID)
	a.markSeen()
	return nil
}

func (a *App) RemoveFolder(ctx context.Context, args []string) error {
	id, err := argID(args, "rmdir <folder>")
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Delete folder %d with all its notes?", id), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.notes.DeleteFolder(ctx, id); err != nil {
		return err
	}
	a.markSeen()
	return nil
}

func optionalTitle(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *App) NewNote(ctx context.Context, args []string) error {
	id, err := argID(args, "new <folder>")
	if err != nil {
		return err
	}
	title, err := a.prompt("Title (optional)")
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Text", a.out)
	if err != nil {
		return err
	}
	noteID, err := a.notes.CreateNote(ctx, id, optionalTitle(title), text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Note %d created\n", noteID)
	a.markSeen()
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := argID(args, "show <note>")
	if err != nil {
		return err
	}
	n, err := a.notes.Note(ctx, id)
	if err != nil {
		return err
	}
	writeNote(a.out, n)
	a.markSeen()
	return nil
}

// Edit replaces a note. An empty answer keeps the current value; a single
// "-" clears the title.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := argID(args, "edit <note>")
	if err != nil {
		return err
	}
	n, err := a.notes.Note(ctx, id)
	if err != nil {
		return err
	}
	writeNote(a.out, n)

	title, err := a.prompt("New title (empty keeps, - clears)")
	if err != nil {
		return err
	}
	switch title {
	case "":
	case "-":
		n.Title = nil
	default:
		n.Title = &title
	}

	text, err := GetMultiline(a.reader, "New text (empty keeps)", a.out)
	if err != nil {
		return err
	}
	if text != "" {
		n.Text = text
	}
	if err := a.notes.EditNote(ctx, id, n.Title, n.Text); err != nil {
		return err
	}
	a.markSeen()
	return nil
}

func (a *App) RemoveNote(ctx context.Context, args []string) error {
	id, err := argID(args, "rm <note>")
	if err != nil {
		return err
	}
	if err := a.notes.DeleteNote(ctx, id); err != nil {
		return err
	}
	a.markSeen()
	return nil
}

func (a *App) Sync(ctx context.Context, args []string) error {
	if err := a.syncer.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Synced")
	return nil
}

func writeAccounts(w io.Writer, tree syncer.Tree) {
	if len(tree.Accounts) == 0 {
		fmt.Fprintln(w, "No accounts. Use signup, join or local to add one.")
		return
	}
	for _, at := range tree.Accounts {
		fmt.Fprintf(w, "[%d] %s (%s)%s\n", at.Account.ID, at.Account.Name, at.Account.Kind, lastSync(at))
	}
}

func lastSync(at syncer.AccountTree) string {
	switch {
	case at.Account.Kind != models.KindRemote:
		return ""
	case at.LastSync.IsZero():
		return ", never synced"
	default:
		return ", synced " + at.LastSync.Local().Format(time.DateTime)
	}
}

func noteTitle(n *models.Note) string {
	if n.Title == nil || *n.Title == "" {
		first, _, _ := strings.Cut(n.Text, "\n")
		return first
	}
	return *n.Title
}

func writeTree(w io.Writer, tree syncer.Tree) {
	writeAccounts(w, tree)
	for _, at := range tree.Accounts {
		if len(at.Folders) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", at.Account.Name)
		for _, ft := range at.Folders {
			fmt.Fprintf(w, "  [%d] %s\n", ft.Folder.ID, ft.Folder.Name)
			for i := range ft.Notes {
				n := &ft.Notes[i]
				mark := ""
				if n.State == models.StateModified && at.Account.Kind == models.KindRemote {
					mark = " *"
				}
				fmt.Fprintf(w, "    (%d) %s%s\n", n.ID, noteTitle(n), mark)
			}
		}
	}
}

func writeNote(w io.Writer, n *models.Note) {
	if n.Title != nil {
		fmt.Fprintf(w, "# %s\n", *n.Title)
	}
	fmt.Fprintln(w, n.Text)
}
