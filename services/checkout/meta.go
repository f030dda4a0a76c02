package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"pickupbot/lib/webshop"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// every checkout page variant we know how to drive carries this token
// in its markup. its absence means we got served something else
// entirely (an error page, a bot wall) and parsing must not continue.
const pageMarker = "x-aos-stk"

const initDataScriptID = "init_data"

// pageData is the metadata document embedded in checkout html pages.
// meta.h carries headers the session must attach to every later
// request.
type pageData struct {
	Meta struct {
		H map[string]string `json:"h"`
	} `json:"meta"`
	ShoppingCart struct {
		Items struct {
			C []string `json:"c"`
		} `json:"items"`
	} `json:"shoppingCart"`
	ThankYouInterstitial struct {
		D struct {
			OrderNumber string `json:"orderNumber"`
		} `json:"d"`
	} `json:"thankYouInterstitial"`
}

// fetchPageMeta requests an html checkout page, validates the page
// marker, extracts the embedded metadata document and merges its
// header set into the session.
func (c *Client) fetchPageMeta(ctx context.Context, url string, query map[string]string) (pageData, error) {
	ctx, span := tracer.Start(ctx, "fetchPageMeta")
	defer span.End()

	res, err := c.session.Get(ctx, url, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return pageData{}, err
	}
	if err := webshop.EnsureStatus(res, 200); err != nil {
		span.SetStatus(codes.Error, "unexpected page status")
		return pageData{}, err
	}

	body := res.Body()
	if !bytes.Contains(body, []byte(pageMarker)) {
		span.SetStatus(codes.Error, "page marker missing")
		return pageData{}, &webshop.ProtocolError{
			URL:    res.Request.URL,
			Reason: "page marker missing",
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return pageData{}, err
	}

	raw := strings.TrimSpace(doc.Find("script#" + initDataScriptID).Text())
	if raw == "" {
		span.SetStatus(codes.Error, "metadata script missing")
		return pageData{}, &webshop.ProtocolError{
			URL:    res.Request.URL,
			Reason: "embedded metadata script missing",
		}
	}

	var page pageData
	err = json.Unmarshal([]byte(raw), &page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal metadata")
		return pageData{}, &webshop.ProtocolError{
			URL:    res.Request.URL,
			Reason: "embedded metadata is not valid json",
		}
	}

	c.session.MergeHeaders(page.Meta.H)
	return page, nil
}
