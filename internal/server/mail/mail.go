// Package mail delivers sign-up verification codes.
package mail

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogMailer writes codes to the server log instead of sending them. It is the
// default for development deployments without an outbound relay.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mail")}
}

func (m *LogMailer) SendCode(ctx context.Context, email, code string) error {
	m.logger.Info(ctx, "verification code issued", "email", email, "code", code)
	return nil
}
