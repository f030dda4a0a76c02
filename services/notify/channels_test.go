package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pickupbot/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func webhookServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChannelsRejectServerErrors(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	// a failing webhook must surface an error even when the error body
	// decodes to a zero logical code, otherwise the dispatcher records
	// a delivery that never happened
	server := webhookServer(t, http.StatusInternalServerError, `{}`)

	bark := NewBark("token", server.URL)
	require.ErrorContains(t, bark.Push(context.Background(), "title", "content"), "status 500")

	dingtalk := NewDingTalk("token")
	dingtalk.host = server.URL
	require.ErrorContains(t, dingtalk.Push(context.Background(), "title", "content"), "status 500")

	feishu := NewFeishu("token")
	feishu.host = server.URL
	require.ErrorContains(t, feishu.Push(context.Background(), "title", "content"), "status 500")
}

func TestChannelsRejectLogicalErrors(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	bark := NewBark("token", webhookServer(t, http.StatusOK,
		`{"code": 400, "message": "device token is invalid"}`).URL)
	require.ErrorContains(t, bark.Push(context.Background(), "title", "content"),
		"device token is invalid")

	dingtalk := NewDingTalk("token")
	dingtalk.host = webhookServer(t, http.StatusOK,
		`{"errcode": 310000, "errmsg": "keywords not in content"}`).URL
	require.ErrorContains(t, dingtalk.Push(context.Background(), "title", "content"),
		"keywords not in content")

	feishu := NewFeishu("token")
	feishu.host = webhookServer(t, http.StatusOK,
		`{"code": 19021, "msg": "sign match fail"}`).URL
	require.ErrorContains(t, feishu.Push(context.Background(), "title", "content"),
		"sign match fail")
}

func TestChannelsAcceptSuccess(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/notify")
	defer cleanup()

	bark := NewBark("token", webhookServer(t, http.StatusOK,
		`{"code": 200, "message": "success"}`).URL)
	require.NoError(t, bark.Push(context.Background(), "title", "content"))

	dingtalk := NewDingTalk("token")
	dingtalk.host = webhookServer(t, http.StatusOK, `{"errcode": 0, "errmsg": "ok"}`).URL
	require.NoError(t, dingtalk.Push(context.Background(), "title", "content"))

	feishu := NewFeishu("token")
	feishu.host = webhookServer(t, http.StatusOK, `{"code": 0, "msg": "success"}`).URL
	require.NoError(t, feishu.Push(context.Background(), "title", "content"))
}
