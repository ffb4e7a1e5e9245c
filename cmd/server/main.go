// Command server runs the gophnotes ledger: the HTTP/websocket API and the
// gRPC health endpoint over one PostgreSQL database.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/server"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
)

// startupTimeout bounds connecting to the database and applying migrations.
const startupTimeout = 30 * time.Second

func main() {

	cfg := config.LoadConfig()

	initCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	app, err := server.NewApp(initCtx, cfg)
	cancel()

	if err != nil {
		log.Printf("server init: %v", err)
		os.Exit(1)
	}

	app.Run(context.Background())

}
