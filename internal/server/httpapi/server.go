// Package httpapi exposes the ledger, pairing and device services over the
// REST and websocket network contract.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/notify"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/gorilla/mux"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type Ledger interface {
	FetchFolders(ctx context.Context, c services.Caller) ([]models.FolderView, error)
	FetchFolder(ctx context.Context, c services.Caller, folderID int64) (*models.FolderView, error)
	CreateFolder(ctx context.Context, c services.Caller, items []models.FolderContent) (int64, error)
	DeleteFolder(ctx context.Context, c services.Caller, folderID int64) error
	FetchCommits(ctx context.Context, c services.Caller, folderID int64) ([]models.Commit, error)
	CreateNote(ctx context.Context, c services.Caller, folderID, commit int64, items []models.NoteContent) (*services.CreatedNote, error)
	FetchNote(ctx context.Context, c services.Caller, noteID int64) (*models.NoteView, error)
	UpdateNote(ctx context.Context, c services.Caller, noteID, expected int64, items []models.NoteContent) (*models.Commit, error)
	DeleteNote(ctx context.Context, c services.Caller, noteID int64) error
	FetchRequests(ctx context.Context, c services.Caller) (*models.Requests, error)
	CreateRequests(ctx context.Context, c services.Caller, folderIDs, noteIDs []int64) error
	RespondRequests(ctx context.Context, c services.Caller, target int64, folders []models.FolderAnswer, notes []models.NoteAnswer) error
}

type Pairing interface {
	SendCode(ctx context.Context, email string) error
	SignUp(ctx context.Context, email, code, pubkey, password string) (string, error)
	Login(ctx context.Context, email, pubkey, password string) (string, error)
	RequestVerification(ctx context.Context, email, pubkey, password string) (string, error)
	AddDevice(ctx context.Context, c services.Caller, pubkey string) (*models.Device, error)
}

type Devices interface {
	ListDevices(ctx context.Context, c services.Caller) ([]models.Device, error)
	DeleteDevice(ctx context.Context, c services.Caller) error
}

// Push bundles the two websocket hubs and their connection settings.
type Push struct {
	Listen    *notify.Hub
	Pending   *notify.Hub
	ListenCfg notify.ConnConfig
	WaitCfg   notify.ConnConfig
}

type HTTPServer struct {
	address string
	logger  logging.Logger
	issuer  *auth.Issuer
	ledger  Ledger
	pairing Pairing
	devices Devices
	push    Push
}

func NewHTTPServer(a string, l logging.Logger, issuer *auth.Issuer, ledger Ledger, pairing Pairing, devices Devices, push Push) *HTTPServer {
	return &HTTPServer{
		address: a,
		logger:  l.With("module", "http_server"),
		issuer:  issuer,
		ledger:  ledger,
		pairing: pairing,
		devices: devices,
		push:    push,
	}
}

// Handler builds the router with all routes and middleware.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(withCorrelationID, s.accessLog)

	device := func(h http.HandlerFunc) http.HandlerFunc { return s.requireKind(auth.KindDevice, h) }

	r.Methods(http.MethodGet).Path("/folders").HandlerFunc(device(s.fetchFolders))
	r.Methods(http.MethodPost).Path("/folder").HandlerFunc(device(s.createFolder))
	r.Methods(http.MethodGet).Path("/folder/{id}").HandlerFunc(device(s.fetchFolder))
	r.Methods(http.MethodDelete).Path("/folder/{id}").HandlerFunc(device(s.deleteFolder))
	r.Methods(http.MethodGet).Path("/folder/{id}/commits").HandlerFunc(device(s.fetchCommits))

	r.Methods(http.MethodPost).Path("/note").HandlerFunc(device(s.createNote))
	r.Methods(http.MethodGet).Path("/note/{id}").HandlerFunc(device(s.fetchNote))
	r.Methods(http.MethodPut).Path("/note/{id}").HandlerFunc(device(s.updateNote))
	r.Methods(http.MethodDelete).Path("/note/{id}").HandlerFunc(device(s.deleteNote))

	r.Methods(http.MethodGet).Path("/requests").HandlerFunc(device(s.fetchRequests))
	r.Methods(http.MethodPost).Path("/requests").HandlerFunc(device(s.createRequests))
	r.Methods(http.MethodPost).Path("/respond-requests").HandlerFunc(device(s.respondRequests))

	r.Methods(http.MethodGet).Path("/devices").HandlerFunc(device(s.listDevices))
	r.Methods(http.MethodPost).Path("/devices").HandlerFunc(device(s.addDevice))
	r.Methods(http.MethodDelete).Path("/devices").HandlerFunc(device(s.deleteDevice))

	r.Methods(http.MethodPost).Path("/auth/send-code").HandlerFunc(s.sendCode)
	r.Methods(http.MethodPost).Path("/auth/sign-up").HandlerFunc(s.signUp)
	r.Methods(http.MethodPost).Path("/auth/login").HandlerFunc(s.login)
	r.Methods(http.MethodPost).Path("/auth/request-verification").HandlerFunc(s.requestVerification)
	r.Methods(http.MethodGet).Path("/auth/wait-verification").HandlerFunc(s.requireKind(auth.KindPendingDevice, s.waitVerification))

	r.Methods(http.MethodGet).Path("/notify/listen").HandlerFunc(device(s.listen))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errRouteNotFound)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully. Push
// connections end with ctx since their request contexts derive from it.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
