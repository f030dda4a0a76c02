package commands

import (
	"fmt"

	"pickupbot/services/checkout"
	"pickupbot/services/notify"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// NotifyConfig holds the push channel credentials. Every channel is
// optional; the monitor just runs quieter without them.
type NotifyConfig struct {
	BarkToken     string `env:"BARK_TOKEN"`
	BarkHost      string `env:"BARK_HOST"`
	DingTalkToken string `env:"DINGTALK_TOKEN"`
	FeishuToken   string `env:"FEISHU_TOKEN"`

	SmtpServer   string `env:"SMTP_SERVER"`
	SmtpPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SmtpAddress  string `env:"SMTP_ADDRESS"`
	SmtpPassword string `env:"SMTP_PASSWORD"`
	SmtpTo       string `env:"SMTP_TO"`
}

// DeliveryConfig is only required when --order is set, so its fields
// are validated by hand rather than with required tags.
type DeliveryConfig struct {
	FirstName     string `env:"DELIVERY_FIRST_NAME"`
	LastName      string `env:"DELIVERY_LAST_NAME"`
	Email         string `env:"DELIVERY_EMAIL"`
	Phone         string `env:"DELIVERY_PHONE"`
	NationalID    string `env:"DELIVERY_NATIONAL_ID"`
	PaymentMethod string `env:"DELIVERY_PAYMENT" envDefault:"ALIPAY"`
	Installments  int    `env:"DELIVERY_INSTALLMENTS" envDefault:"1"`
}

func loadEnv[T any]() (T, error) {
	// the .env file is a convenience; missing is fine
	_ = godotenv.Load()
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c NotifyConfig) Notifiers() []notify.Notifier {
	var notifiers []notify.Notifier
	if c.BarkToken != "" {
		notifiers = append(notifiers, notify.NewBark(c.BarkToken, c.BarkHost))
	}
	if c.DingTalkToken != "" {
		notifiers = append(notifiers, notify.NewDingTalk(c.DingTalkToken))
	}
	if c.FeishuToken != "" {
		notifiers = append(notifiers, notify.NewFeishu(c.FeishuToken))
	}
	if c.SmtpServer != "" {
		notifiers = append(notifiers, notify.NewEmail(notify.SmtpConfig{
			Server:   c.SmtpServer,
			Port:     c.SmtpPort,
			Address:  c.SmtpAddress,
			Password: c.SmtpPassword,
			To:       c.SmtpTo,
		}))
	}
	return notifiers
}

func (c DeliveryConfig) Profile() (checkout.DeliveryProfile, error) {
	required := map[string]string{
		"DELIVERY_FIRST_NAME":  c.FirstName,
		"DELIVERY_LAST_NAME":   c.LastName,
		"DELIVERY_EMAIL":       c.Email,
		"DELIVERY_PHONE":       c.Phone,
		"DELIVERY_NATIONAL_ID": c.NationalID,
	}
	for name, value := range required {
		if value == "" {
			return checkout.DeliveryProfile{}, fmt.Errorf("ordering requires %s to be set", name)
		}
	}
	return checkout.DeliveryProfile{
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Phone:         c.Phone,
		NationalID:    c.NationalID,
		PaymentMethod: c.PaymentMethod,
		Installments:  c.Installments,
	}, nil
}
