package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server   string
	Port     int
	Address  string
	Password string
	To       string
}

type Email struct {
	config SmtpConfig
}

func NewEmail(config SmtpConfig) *Email {
	return &Email{config: config}
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) Push(ctx context.Context, title, content string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Pickup Monitor <%s>", e.config.Address)
	mail.To = []string{e.config.To}
	mail.Subject = title
	mail.Text = []byte(content)

	err := mail.Send(
		fmt.Sprintf("%s:%d", e.config.Server, e.config.Port),
		smtp.PlainAuth("", e.config.Address, e.config.Password, e.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(fmt.Sprintf("%s:%d", e.config.Server, e.config.Port), nil)
	}
	return err
}
