// ABOUTME: Template rendering for invitation and role-change notification emails.
// ABOUTME: Templates parsed once at init from embedded FS; rendered per message.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// InvitationTemplateData is the context passed to the invitation email template.
type InvitationTemplateData struct {
	InviterName string
	AcceptURL   string
}

// RoleChangeTemplateData is the context passed to the role-change email template.
type RoleChangeTemplateData struct {
	NewRoleLabel string
	ActorEmail   string
}

// Parsed templates — one per file to avoid {{define}} namespace collisions.
var (
	invitationTmpl *template.Template
	roleChangeTmpl *template.Template
)

func init() {
	invitationTmpl = template.Must(template.New("").ParseFS(templateFS, "templates/email_invitation.txt.tmpl"))
	roleChangeTmpl = template.Must(template.New("").ParseFS(templateFS, "templates/email_role_change.txt.tmpl"))
}

// RenderInvitation renders the invitation email. Returns subject and plaintext body.
func RenderInvitation(data InvitationTemplateData) (string, string, error) {
	return render(invitationTmpl, data)
}

// RenderRoleChange renders the role-change email. Returns subject and plaintext body.
func RenderRoleChange(data RoleChangeTemplateData) (string, string, error) {
	return render(roleChangeTmpl, data)
}

func render(tmpl *template.Template, data any) (string, string, error) {
	// Render subject from the template's "subject" block.
	var subjectBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subjectBuf, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	subject := sanitizeSubject(subjectBuf.String())

	var bodyBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&bodyBuf, "body", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	return subject, bodyBuf.String(), nil
}

// sanitizeSubject strips CR/LF to prevent email header injection.
func sanitizeSubject(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
