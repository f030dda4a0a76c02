package checkout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeStatusForms(t *testing.T) {
	cases := []struct {
		raw    string
		expect statusCode
	}{
		{raw: `{"head": {"status": 302, "data": {}}}`, expect: 302},
		{raw: `{"head": {"status": "302", "data": {}}}`, expect: 302},
		{raw: `{"head": {"status": "200", "data": {}}}`, expect: 200},
	}
	for _, test := range cases {
		var env envelope
		err := json.Unmarshal([]byte(test.raw), &env)
		require.NoError(t, err)
		require.Equal(t, test.expect, env.Head.Status)
	}
}

func TestEnvelopeStatusInvalid(t *testing.T) {
	var env envelope
	err := json.Unmarshal([]byte(`{"head": {"status": "redirect"}}`), &env)
	require.Error(t, err)
}

func TestEnvelopeNextRequest(t *testing.T) {
	raw := `{
		"head": {
			"status": "302",
			"data": {
				"url": "https://secure.example.com/shop/checkoutx",
				"args": {"_a": "continueFromReviewToProcess", "_m": "checkout"}
			}
		},
		"body": {"checkout": {}}
	}`
	var env envelope
	err := json.Unmarshal([]byte(raw), &env)
	require.NoError(t, err)
	require.Equal(t, "https://secure.example.com/shop/checkoutx", env.Head.Data.URL)
	require.Equal(t, "continueFromReviewToProcess", env.Head.Data.Args["_a"])
	require.NotEmpty(t, env.Body)
}
