package notify

import (
	"context"
	"fmt"
	"pickupbot/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const defaultFeishuHost = "https://open.feishu.cn"

type Feishu struct {
	token string
	host  string
	http  *resty.Client
}

func NewFeishu(token string) *Feishu {
	client := resty.New()
	telemetry.InstrumentResty(client, "notify/feishu")
	return &Feishu{token: token, host: defaultFeishuHost, http: client}
}

func (f *Feishu) Name() string {
	return "feishu"
}

func (f *Feishu) Push(ctx context.Context, title, content string) error {
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	res, err := f.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"msg_type": "text",
			"content": map[string]string{
				"text": title + "\r\n\r\n" + content,
			},
		}).
		SetResult(&body).
		Post(f.host + "/open-apis/bot/v2/hook/" + f.token)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("feishu push failed with status %d", res.StatusCode())
	}
	if body.Code != 0 {
		return fmt.Errorf("feishu push rejected: %s", body.Msg)
	}
	return nil
}
