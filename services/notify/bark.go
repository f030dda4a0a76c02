package notify

import (
	"context"
	"fmt"
	"net/url"
	"pickupbot/lib/telemetry"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultBarkHost = "https://api.day.app"

type Bark struct {
	token string
	host  string
	http  *resty.Client
}

func NewBark(token, host string) *Bark {
	if host == "" {
		host = defaultBarkHost
	}
	client := resty.New()
	telemetry.InstrumentResty(client, "notify/bark")
	return &Bark{
		token: token,
		host:  strings.TrimRight(host, "/"),
		http:  client,
	}
}

func (b *Bark) Name() string {
	return "bark"
}

func (b *Bark) Push(ctx context.Context, title, content string) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	res, err := b.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf(
			"%s/%s/%s/%s",
			b.host,
			b.token,
			url.QueryEscape(title),
			url.QueryEscape(content),
		))
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("bark push failed with status %d", res.StatusCode())
	}
	if body.Code != 200 {
		return fmt.Errorf("bark push rejected: %s", body.Message)
	}
	return nil
}
