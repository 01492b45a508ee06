// Package mail renders and sends booking confirmation emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"text/template"

	"go.uber.org/zap"
)

// BookingDetails is what a confirmation email tells the customer.
type BookingDetails struct {
	ReservationID string `json:"reservation_id"`
	Title         string `json:"title"`
	DateKey       string `json:"date_key"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
}

// Price formats the amount in major units, e.g. "25.00 USD".
func (d BookingDetails) Price() string {
	return fmt.Sprintf("%d.%02d %s", d.PriceCents/100, d.PriceCents%100, strings.ToUpper(d.Currency))
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(
	`Your booking is confirmed.

Session:   {{.Title}}
Date:      {{.DateKey}}
Time:      {{.StartTime}} - {{.EndTime}}
Paid:      {{.Price}}
Reference: {{.ReservationID}}
`))

// Render builds the subject and plain-text body of a confirmation.
func Render(d BookingDetails) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, d); err != nil {
		return "", "", fmt.Errorf("render confirmation: %w", err)
	}
	return fmt.Sprintf("Booking confirmed: %s on %s", d.Title, d.DateKey), buf.String(), nil
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// SMTPSender delivers confirmations through an SMTP relay.  Delivery is best
// effort: failures are logged and reported as false, never returned.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// SendBookingConfirmation emails d to address.
func (s *SMTPSender) SendBookingConfirmation(ctx context.Context, address string, d BookingDetails) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if s.cfg.Host == "" {
		s.logger.Warn("smtp host not configured; confirmation not sent",
			zap.String("reservation_id", d.ReservationID))
		return false
	}
	rcpt, err := mail.ParseAddress(address)
	if err != nil {
		s.logger.Warn("invalid recipient address; confirmation not sent",
			zap.String("reservation_id", d.ReservationID),
			zap.Error(err))
		return false
	}
	subject, body, err := Render(d)
	if err != nil {
		s.logger.Error("render confirmation", zap.Error(err))
		return false
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	msg := buildMessage(s.cfg.From, rcpt.Address, subject, body)
	if err := s.send(net.JoinHostPort(s.cfg.Host, s.cfg.Port), auth, s.cfg.From, []string{rcpt.Address}, msg); err != nil {
		s.logger.Error("send confirmation email",
			zap.String("reservation_id", d.ReservationID),
			zap.Error(err))
		return false
	}
	s.logger.Info("confirmation email sent", zap.String("reservation_id", d.ReservationID))
	return true
}

// buildMessage assembles the RFC 5322 message.  to must already be a parsed
// bare address; the subject is Q-encoded whenever it holds control or
// non-ASCII characters, so it can never break out of its header line.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
