package notify

import (
	"context"
	"fmt"
	"pickupbot/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const defaultDingTalkHost = "https://oapi.dingtalk.com"

type DingTalk struct {
	token string
	host  string
	http  *resty.Client
}

func NewDingTalk(token string) *DingTalk {
	client := resty.New()
	telemetry.InstrumentResty(client, "notify/dingtalk")
	return &DingTalk{token: token, host: defaultDingTalkHost, http: client}
}

func (d *DingTalk) Name() string {
	return "dingtalk"
}

func (d *DingTalk) Push(ctx context.Context, title, content string) error {
	var body struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"msgtype": "text",
			"text": map[string]string{
				"content": title + "\r\n\r\n" + content,
			},
			"at": map[string]any{"isAtAll": 0},
		}).
		SetResult(&body).
		Post(d.host + "/robot/send?access_token=" + d.token)
	if err != nil {
		return err
	}
	// resty only decodes the result on 2xx, so the logical code is
	// meaningless unless the request itself succeeded
	if !res.IsSuccess() {
		return fmt.Errorf("dingtalk push failed with status %d", res.StatusCode())
	}
	if body.ErrCode != 0 {
		return fmt.Errorf("dingtalk push rejected: %s", body.ErrMsg)
	}
	return nil
}
