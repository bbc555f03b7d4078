package email

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Provider delivers booking emails to clients.
type Provider interface {
	SendBookingConfirmation(ctx context.Context, to string, msg BookingConfirmation) error
}

// BookingConfirmation is rendered into the booking_confirmed template.
type BookingConfirmation struct {
	ClientName string
	Content    string
	ViewURL    string
}

func (m BookingConfirmation) templateData() map[string]interface{} {
	return map[string]interface{}{
		"client_name": strings.TrimSpace(m.ClientName),
		"content":     m.Content,
		"view_url":    strings.TrimSpace(m.ViewURL),
	}
}

// NoOpProvider drops booking emails when SMTP is not configured.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) SendBookingConfirmation(ctx context.Context, to string, msg BookingConfirmation) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipients
	}
	p.log.Debug("booking email dropped", zap.Bool("has_view_url", msg.ViewURL != ""))
	return nil
}
