package mailer

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
)

// Sender is the outbound-mail dependency handlers and jobs use; tests
// swap in a recorder.
type Sender interface {
	SendOtp(email, code string) error
	SendPostRemoved(email, caption string) error
	SendDigest(email string, captions []string) error
}

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	host string
	port int
	user string
	pass string
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
	}
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}

func (m *Mailer) SendOtp(email, code string) error {
	body := fmt.Sprintf("Your password reset code is: %s. Ignore this email if you did not request a reset.", code)
	return m.send(email, "Password Reset Code", body)
}

func (m *Mailer) SendPostRemoved(email, caption string) error {
	body := fmt.Sprintf("Your post %q was removed by a moderator for violating community guidelines.", caption)
	return m.send(email, "Post Removed", body)
}

func (m *Mailer) SendDigest(email string, captions []string) error {
	body := fmt.Sprintf("Posts you may have missed:\n- %s", strings.Join(captions, "\n- "))
	return m.send(email, "New posts for you", body)
}
