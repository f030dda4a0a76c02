package checkout

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// statusCode is the logical status embedded in a response envelope.
// the storefront answers with both `"status": 302` and
// `"status": "302"` depending on the endpoint.
type statusCode int

func (s *statusCode) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*s = statusCode(n)
	return nil
}

// envelope is the json document every checkout mutation answers with.
// head.status is a logical status distinct from the http status, and
// head.data.url points at the next request the flow must make.
type envelope struct {
	Head struct {
		Status statusCode `json:"status"`
		Data   struct {
			URL  string            `json:"url"`
			Args map[string]string `json:"args"`
		} `json:"data"`
	} `json:"head"`
	Body json.RawMessage `json:"body"`
}

func decodeEnvelope(res *resty.Response) (envelope, error) {
	var env envelope
	err := json.Unmarshal(res.Body(), &env)
	return env, err
}
