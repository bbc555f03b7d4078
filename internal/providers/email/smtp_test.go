package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendBookingConfirmationRendersTemplate(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 2525, From: "no-reply@semah.sa"})
	provider.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		assert.Nil(t, a)
		return nil
	}

	err := provider.SendBookingConfirmation(context.Background(), " client@example.com ", BookingConfirmation{
		ClientName: " Sara ",
		Content:    "Your appointment with id: 1 and date: 2026-03-10T14:30:00Z has been booked successfully!",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "no-reply@semah.sa", gotFrom)
	assert.Equal(t, []string{"client@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: Your booking is confirmed"))
	assert.True(t, strings.Contains(gotMsg, "Hello Sara,"))
	assert.False(t, strings.Contains(gotMsg, "View your booking"))
}

func TestSendRequiresRecipients(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 25})
	assert.ErrorIs(t, provider.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestSendBookingConfirmationLinksBooking(t *testing.T) {
	var gotMsg string
	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 587, Username: "mailer", Password: "secret"})
	provider.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.NotNil(t, a)
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, provider.SendBookingConfirmation(context.Background(), "client@example.com", BookingConfirmation{
		ClientName: "Sara",
		Content:    "Your incorporation order with id: 9 has been placed successfully!",
		ViewURL:    "https://app.example.com/myOrders/9",
	}))
	assert.True(t, strings.Contains(gotMsg, `href="https://app.example.com/myOrders/9"`))
}

func TestSendBookingConfirmationRequiresRecipient(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 25})
	assert.ErrorIs(t, provider.SendBookingConfirmation(context.Background(), "  ", BookingConfirmation{}), ErrNoRecipients)
	assert.ErrorIs(t, NewNoOp(zap.NewNop()).SendBookingConfirmation(context.Background(), "", BookingConfirmation{}), ErrNoRecipients)
	assert.NoError(t, NewNoOp(nil).SendBookingConfirmation(context.Background(), "client@example.com", BookingConfirmation{}))
}
