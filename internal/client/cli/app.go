package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/config"
	"github.com/dmitrijs2005/gophnotes/internal/client/services"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/dmitrijs2005/gophnotes/internal/client/watch"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Syncer is the part of the sync engine the front-end uses.
type Syncer interface {
	Tree() *watch.Value[syncer.Tree]
	Active() int
	Trigger()
	Sync(ctx context.Context) error
	Publish(ctx context.Context) error
	Run(ctx context.Context, interval time.Duration)
}

// HealthChecker reports whether the server is reachable.
type HealthChecker interface {
	Online(ctx context.Context) bool
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	accounts services.AccountService
	notes    services.NoteService
	syncer   Syncer
	health   HealthChecker
	reader   *bufio.Reader
	out      io.Writer

	mu   sync.Mutex
	mode Mode

	// seen is the digest of the content last shown to or changed by the
	// user; updated is set when the tree moved away from it.
	seen    uint64
	updated bool

	closers []func() error
}

// NewApp opens the local cache and builds the services on top of it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, c.LogFormat, c.LogLevel)

	path, err := c.DatabasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", path, "error", err)
		return nil, err
	}

	health, err := api.NewHealthChecker(c.HealthAddr)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	dial := func(serverURL string) (services.Remote, error) {
		cl, err := api.NewClient(serverURL, c.ConnectTimeout, logger)
		if err != nil {
			return nil, err
		}
		return cl, nil
	}
	sessions := services.NewSessions(st, dial, logger)
	sy := syncer.New(st, sessions.Connect, logger)

	return &App{
		config:   c,
		logger:   logger,
		accounts: services.NewAccountService(st, sessions, sy, logger),
		notes:    services.NewNoteService(st, sy, logger),
		syncer:   sy,
		health:   health,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		mode:     ModeOffline,
		closers:  []func() error{health.Close, st.Close},
	}, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Run starts the background workers and blocks in the REPL until the user
// exits or stdin ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.syncer.Publish(ctx); err != nil {
		return err
	}
	a.markSeen()

	go a.watchTree(ctx)
	go a.syncer.Run(ctx, a.config.SyncInterval)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	a.accounts.Listen(ctx)
	a.syncer.Trigger()

	fmt.Fprintln(a.out, "Welcome to gophnotes (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode reports whether the mode changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	return true
}

// checkOnline checks the server once. Coming back online triggers a sync.
func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	online := a.health.Online(ctx)
	cancel()

	mode := ModeOffline
	if online {
		mode = ModeOnline
	}
	if !a.setMode(mode) {
		return
	}
	a.logger.Info(ctx, "connectivity changed", "mode", mode)
	if mode == ModeOnline {
		a.syncer.Trigger()
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.checkOnline(ctx)
	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	s := string(a.Mode())
	if a.syncer.Active() > 0 {
		s += ", syncing"
	}
	a.mu.Lock()
	if a.updated {
		s += ", updated"
	}
	a.mu.Unlock()
	return fmt.Sprintf("(%s)", s)
}

// contentDigest hashes what the user sees of a tree: accounts, folder names
// and note titles and texts. Commits and sync states are left out.
func contentDigest(tree syncer.Tree) uint64 {
	h := fnv.New64a()
	for _, at := range tree.Accounts {
		fmt.Fprintf(h, "a%d\x00%s\x00", at.Account.ID, at.Account.Name)
		for _, ft := range at.Folders {
			fmt.Fprintf(h, "f%d\x00%s\x00", ft.Folder.ID, ft.Folder.Name)
			for _, n := range ft.Notes {
				title := "-"
				if n.Title != nil {
					title = "t" + *n.Title
				}
				fmt.Fprintf(h, "n%d\x00%s\x00%s\x00", n.ID, title, n.Text)
			}
		}
	}
	return h.Sum64()
}

// markSeen takes the current tree as known to the user.
func (a *App) markSeen() {
	d := contentDigest(a.syncer.Tree().Get())
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = d
	a.updated = false
}

// watchTree flags content that arrives while the user is not looking, so
// the prompt can hint at running list.
func (a *App) watchTree(ctx context.Context) {
	sub := a.syncer.Tree().Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Changed():
		}
		d := contentDigest(sub.Latest())
		a.mu.Lock()
		if d != a.seen {
			a.updated = true
		}
		a.mu.Unlock()
	}
}
