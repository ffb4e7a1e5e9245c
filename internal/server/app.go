// Package server wires the ledger database, services, push hubs and the HTTP
// and gRPC endpoints together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/dmitrijs2005/gophnotes/internal/server/httpapi"
	"github.com/dmitrijs2005/gophnotes/internal/server/mail"
	"github.com/dmitrijs2005/gophnotes/internal/server/notify"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/dmitrijs2005/gophnotes/internal/server/shared/db"

	gs "github.com/dmitrijs2005/gophnotes/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closeDB func()
	http    *httpapi.HTTPServer
	grpc    *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	conn, closeDB, err := db.Open(ctx, c.DatabaseDSN, c.DBMaxConns, c.DBMinConns)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, conn); err != nil {
		closeDB()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	issuer := auth.NewIssuer([]byte(c.SecretKey))
	listen := notify.NewHub("listen", logger)
	pending := notify.NewHub("pending", logger)

	ledger := services.NewLedgerService(conn, rm, listen, logger)
	pairing := services.NewPairingService(conn, rm, issuer, mail.NewLogMailer(logger), listen, pending, c, logger)
	devices := services.NewDeviceService(conn, rm, listen)

	listenCfg := notify.DefaultListenConfig()
	listenCfg.PingInterval = c.PingInterval
	listenCfg.PongWait = c.PongWait
	waitCfg := listenCfg
	waitCfg.Lifetime = c.WaitLifetime

	h := httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, issuer, ledger, pairing, devices, httpapi.Push{
		Listen:    listen,
		Pending:   pending,
		ListenCfg: listenCfg,
		WaitCfg:   waitCfg,
	})
	g := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, conn.PingContext)

	return &App{config: c, logger: logger, db: conn, closeDB: closeDB, http: h, grpc: g}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// run starts one server and cancels the whole app if it fails.
func (app *App) run(ctx context.Context, cancelFunc context.CancelFunc, name string, start func(context.Context) error) {
	if err := start(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.closeDB()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
}
