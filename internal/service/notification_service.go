package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/mail"
)

// VerificationTokenIssuer signs email verification tokens.
type VerificationTokenIssuer interface {
	IssueVerificationToken(userID string) (string, error)
}

var verifyTemplate = template.Must(template.New("verify").Parse(
	`<h1>Verify your email</h1>
<p>Hi {{.Name}},</p>
<p>Please click this <a href="{{.Link}}">link</a> to verify your email.</p>`))

// NotificationService turns account events into outgoing mail.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     mail.Sender
	tokens     VerificationTokenIssuer
	domain     string
	logger     *zap.Logger
}

// NewNotificationService creates the service. domain is the public host used in links.
func NewNotificationService(dispatcher events.Dispatcher, sender mail.Sender, tokens VerificationTokenIssuer, domain string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		tokens:     tokens,
		domain:     domain,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventUserVerified, n.handleUserVerified)
}

// VerificationLink builds the link mailed after signup.
func (n *NotificationService) VerificationLink(token string) string {
	return fmt.Sprintf("http://%s/api/v1/auth/verify/%s", n.domain, url.PathEscape(token))
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}

	token, err := n.tokens.IssueVerificationToken(event.UserID)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	name := payload.FirstName
	if name == "" {
		name = payload.Username
	}
	var body bytes.Buffer
	if err := verifyTemplate.Execute(&body, struct{ Name, Link string }{name, n.VerificationLink(token)}); err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}

	n.logger.Info("UserRegistered", zap.String("user_id", event.UserID))
	return n.sender.Send(ctx, mail.Message{
		To:       []string{payload.Email},
		Subject:  "Verify your email",
		HTMLBody: body.String(),
	})
}

func (n *NotificationService) handleUserVerified(_ context.Context, event events.Event) error {
	n.logger.Info("UserVerified", zap.String("user_id", event.UserID))
	return nil
}
