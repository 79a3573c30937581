// ABOUTME: Async mailer: a bounded queue drained by one goroutine, so HTTP
// ABOUTME: handlers never block on SMTP. Send errors are logged, not returned.
package notify

import (
	"context"
	"log/slog"
)

// message is one queued email.
type message struct {
	to      string
	subject string
	body    string
}

// Mailer delivers emails in the background. Enqueue never blocks: if the
// queue is full the message is dropped with a warning — invitation and
// role-change emails are best-effort notifications, not records.
type Mailer struct {
	cfg   SMTPConfig
	queue chan message
}

// NewMailer creates a Mailer. Run must be started for delivery to happen.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg:   cfg,
		queue: make(chan message, 64),
	}
}

// Run drains the queue until ctx is cancelled. Call from a goroutine at startup.
func (m *Mailer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := SendEmail(ctx, m.cfg, msg.to, msg.subject, msg.body); err != nil {
				slog.ErrorContext(ctx, "mailer: send failed", "to", msg.to, "subject", msg.subject, "error", err)
			}
		}
	}
}

// Enqueue queues an email for background delivery.
func (m *Mailer) Enqueue(to, subject, body string) {
	select {
	case m.queue <- message{to: to, subject: subject, body: body}:
	default:
		slog.Warn("mailer: queue full, dropping email", "to", to, "subject", subject)
	}
}

// EnqueueInvitation queues the invitation email for a new user.
func (m *Mailer) EnqueueInvitation(to, inviterName, acceptURL string) {
	subject, body, err := RenderInvitation(InvitationTemplateData{
		InviterName: inviterName,
		AcceptURL:   acceptURL,
	})
	if err != nil {
		slog.Error("mailer: render invitation", "to", to, "error", err)
		return
	}
	m.Enqueue(to, subject, body)
}

// EnqueueRoleChange queues the role-change notification for a user.
func (m *Mailer) EnqueueRoleChange(to, newRoleLabel, actorEmail string) {
	subject, body, err := RenderRoleChange(RoleChangeTemplateData{
		NewRoleLabel: newRoleLabel,
		ActorEmail:   actorEmail,
	})
	if err != nil {
		slog.Error("mailer: render role change", "to", to, "error", err)
		return
	}
	m.Enqueue(to, subject, body)
}
