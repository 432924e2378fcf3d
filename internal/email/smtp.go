package email

import (
	"fmt"

	mail "github.com/go-mail/mail"

	"resource-auth-service/internal/config"
	"resource-auth-service/internal/util"
)

// Sender delivers one-time codes to end users. The auth core treats delivery
// as a single-shot call; it never retries internally.
type Sender interface {
	SendOTP(to, resourceName, code string) error
}

// SMTPSender delivers mail through a configured SMTP relay.
type SMTPSender struct {
	host string
	port int
	from string
	user string
	pass string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		host: cfg.SMTP.Host,
		port: cfg.SMTP.Port,
		from: cfg.SMTP.From,
		user: cfg.SMTP.Username,
		pass: cfg.SMTP.Password,
	}
}

// SendOTP sends a multipart (plain + HTML) message carrying the code.
func (s *SMTPSender) SendOTP(to, resourceName, code string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Your access code for %s", resourceName))
	m.SetBody("text/plain", otpTextBody(resourceName, code))
	m.AddAlternative("text/html", otpHTMLBody(resourceName, code))

	d := mail.NewDialer(s.host, s.port, s.user, s.pass)

	if err := d.DialAndSend(m); err != nil {
		util.Error("Failed to send OTP email",
			util.String("host", s.host),
			util.ErrorField(err))
		return fmt.Errorf("failed to send OTP email: %w", err)
	}

	util.Debug("OTP email sent", util.String("host", s.host))
	return nil
}

func otpTextBody(resourceName, code string) string {
	return fmt.Sprintf(
		"Your one-time access code for %s is: %s\n\n"+
			"The code expires shortly. If you did not request access, you can ignore this message.\n",
		resourceName, code)
}

func otpHTMLBody(resourceName, code string) string {
	return fmt.Sprintf(
		`<p>Your one-time access code for <strong>%s</strong> is:</p>`+
			`<p style="font-size:24px;letter-spacing:4px;font-family:monospace">%s</p>`+
			`<p>The code expires shortly. If you did not request access, you can ignore this message.</p>`,
		resourceName, code)
}
