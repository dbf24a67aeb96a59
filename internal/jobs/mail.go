package jobs

import (
	gomail "gopkg.in/gomail.v2"
)

// MailSender delivers one HTML message.
type MailSender interface {
	Send(to, subject, html string) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Send implements MailSender.
func (s *SMTPSender) Send(to, subject, html string) error {
	message := gomail.NewMessage()
	message.SetHeader("From", s.From)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/html", html)

	dialer := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	return dialer.DialAndSend(message)
}
