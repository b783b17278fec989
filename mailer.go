package identity

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
<body>
	<p>Hello {{.Name}},</p>
	<p>Welcome! Please confirm your email by clicking the link below:</p>
	<p><a href="{{.Link}}">Confirm email</a></p>
	<p>The link expires soon, so do not wait too long.</p>
</body>
</html>`))

var resetPasswordTmpl = template.Must(template.New("reset").Parse(`<html>
<body>
	<p>Hello {{.Name}},</p>
	<p>Somebody requested a password reset for your account. If it was not
	you, ignore this email. Otherwise click the link below:</p>
	<p><a href="{{.Link}}">Reset password</a></p>
</body>
</html>`))

type mailData struct {
	Name string
	Link string
}

// SMTPMailer delivers lifecycle emails over plain SMTP. Sends run on their
// own goroutine and failures are logged, never returned, so a flaky mail
// relay cannot block a registration.
type SMTPMailer struct {
	cfg         EmailConfig
	frontendURL string
	logger      Logger
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg EmailConfig, frontendURL string) *SMTPMailer {
	return &SMTPMailer{
		cfg:         cfg,
		frontendURL: frontendURL,
		logger:      defLogger{},
	}
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *SMTPMailer) SendConfirmationEmail(user *User, token string) {
	link := fmt.Sprintf("%s/confirm/%s", m.frontendURL, token)
	go m.send(user, "Confirm your email", confirmationTmpl, link)
}

func (m *SMTPMailer) SendResetPasswordEmail(user *User, token string) {
	link := fmt.Sprintf("%s/reset-password/%s", m.frontendURL, token)
	go m.send(user, "Reset your password", resetPasswordTmpl, link)
}

func (m *SMTPMailer) send(user *User, subject string, tmpl *template.Template, link string) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, mailData{Name: user.Name, Link: link}); err != nil {
		m.logger.Error("failed to render email %q for %s: %v", subject, user.Email, err)
		return
	}

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", user.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{user.Email}, msg.Bytes()); err != nil {
		m.logger.Error("failed to send email %q to %s: %v", subject, user.Email, err)
		return
	}

	m.logger.Debug("sent email %q to %s", subject, user.Email)
}
