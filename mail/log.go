package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes messages to a zap logger instead of delivering them.
// The body is logged only when IncludeBody is set.
type LogMailer struct {
	logger      *zap.Logger
	IncludeBody bool
}

func NewLogMailer(logger *zap.Logger, includeBody bool) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail"), IncludeBody: includeBody}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAddress(to) {
		return ErrInvalidRecipient
	}
	fields := []zap.Field{zap.String("to", to), zap.String("subject", subject)}
	if m.IncludeBody {
		fields = append(fields, zap.String("body", body))
	}
	m.logger.Info("mail suppressed", fields...)
	return nil
}
