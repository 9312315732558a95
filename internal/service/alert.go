package service

import (
	"context"
	"fmt"
	"strings"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/utils"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type logAlerter struct{}

// NewLogAlerter reports cases in the service log only.
func NewLogAlerter() Alerter {
	return logAlerter{}
}

func (logAlerter) Alert(ctx context.Context, c domain.ReconciliationCase) error {
	logger.Warn("Reconciliation alert", "ticket", c.Ticket, "kind", c.Kind, "rentalID", c.RentalID,
		"userID", c.UserID, "feeCents", c.FeeCents, "lastError", c.LastError)
	return nil
}

type sendGridAlerter struct {
	apiKey     string
	fromEmail  string
	fromName   string
	recipients []string
	minorUnits int32
}

// NewSendGridAlerter emails every case to the operator recipients.
func NewSendGridAlerter(apiKey, fromEmail, fromName string, recipients []string, minorUnits int32) Alerter {
	return &sendGridAlerter{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		recipients: recipients,
		minorUnits: minorUnits,
	}
}

func (s *sendGridAlerter) Alert(ctx context.Context, c domain.ReconciliationCase) error {
	if len(s.recipients) == 0 {
		return nil
	}

	message := s.buildMessage(c)

	logger.ExternalServiceCall("sendgrid", "Send", "ticket", c.Ticket, "recipients", len(s.recipients))
	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "ticket", c.Ticket)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

func (s *sendGridAlerter) buildMessage(c domain.ReconciliationCase) *mail.SGMailV3 {
	subject, body := alertText(c, s.minorUnits)

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.Subject = subject

	p := mail.NewPersonalization()
	for _, to := range s.recipients {
		p.AddTos(mail.NewEmail("", to))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", body))
	return message
}

func alertText(c domain.ReconciliationCase, minorUnits int32) (string, string) {
	subject := fmt.Sprintf("[battery-rental] %s for rental %d (ticket %s)", c.Kind, c.RentalID, c.Ticket)

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket:   %s\n", c.Ticket)
	fmt.Fprintf(&b, "Kind:     %s\n", c.Kind)
	fmt.Fprintf(&b, "Rental:   %d\n", c.RentalID)
	fmt.Fprintf(&b, "User:     %d\n", c.UserID)
	fmt.Fprintf(&b, "Battery:  %d\n", c.BatteryID)
	if c.ReturnStationID != nil {
		fmt.Fprintf(&b, "Returned: station %d", *c.ReturnStationID)
		if c.ReturnedAt != nil {
			fmt.Fprintf(&b, " at %s", c.ReturnedAt.UTC().Format("2006-01-02 15:04:05 MST"))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Fee:      %s\n", utils.FormatMinor(c.FeeCents, minorUnits))
	}
	if c.LastError != "" {
		fmt.Fprintf(&b, "Error:    %s\n", c.LastError)
	}
	switch c.Kind {
	case domain.ReconciliationInternal:
		b.WriteString("\nThe rental was abandoned and needs manual review.\n")
	default:
		b.WriteString("\nThe battery is back at a station. The scheduled retry will settle the case once the error clears.\n")
	}
	return subject, b.String()
}
