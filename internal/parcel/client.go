// Package parcel talks to the domestic parcel postage API to list services
// and price a parcel for a destination postcode.
package parcel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

const (
	serviceName  = "parcel"
	snippetBytes = 200
)

// Profile is the parcel size used to price a shipment.
type Profile struct {
	LengthCM float64 `json:"length"`
	WidthCM  float64 `json:"width"`
	HeightCM float64 `json:"height"`
	WeightKG float64 `json:"weight"`
}

func (p Profile) orDefault(def Profile) Profile {
	if p.LengthCM <= 0 {
		p.LengthCM = def.LengthCM
	}
	if p.WidthCM <= 0 {
		p.WidthCM = def.WidthCM
	}
	if p.HeightCM <= 0 {
		p.HeightCM = def.HeightCM
	}
	if p.WeightKG <= 0 {
		p.WeightKG = def.WeightKG
	}
	return p
}

type Query struct {
	FromPostcode string
	ToPostcode   string
	Profile      Profile
	ServiceCode  string
}

type Service struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type Calculation struct {
	Service      string          `json:"service"`
	DeliveryTime string          `json:"delivery_time,omitempty"`
	TotalCost    json.RawMessage `json:"total_cost"`
}

// Cost is a resolved shipping price together with the upstream body.
type Cost struct {
	AmountCents int64
	Service     string
	Raw         json.RawMessage
}

type Client struct {
	BaseURL      string
	APIKey       string
	FromPostcode string
	ServiceCode  string
	Profile      Profile
	HTTP         *http.Client
	Logger       *zap.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Services lists the postage services available for the destination.
func (c *Client) Services(ctx context.Context, q Query) ([]Service, json.RawMessage, error) {
	if strings.TrimSpace(q.ToPostcode) == "" {
		return nil, nil, domain.Invalid("to_postcode", "required")
	}
	body, err := c.get(ctx, "/postage/parcel/domestic/service.json", c.params(q))
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		Services struct {
			Service json.RawMessage `json:"service"`
		} `json:"services"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, nil, c.malformed(body, "decode services: "+err.Error())
	}
	services, err := decodeServices(out.Services.Service)
	if err != nil {
		return nil, nil, c.malformed(body, "decode services: "+err.Error())
	}
	return services, body, nil
}

// Calculate prices the parcel for a specific service code.
func (c *Client) Calculate(ctx context.Context, q Query) (*Calculation, json.RawMessage, error) {
	if strings.TrimSpace(q.ToPostcode) == "" {
		return nil, nil, domain.Invalid("to_postcode", "required")
	}
	if strings.TrimSpace(q.ServiceCode) == "" {
		return nil, nil, domain.Invalid("service_code", "required")
	}
	params := c.params(q)
	params.Set("service_code", q.ServiceCode)
	body, err := c.get(ctx, "/postage/parcel/domestic/calculate.json", params)
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		PostageResult *Calculation `json:"postage_result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, nil, c.malformed(body, "decode calculation: "+err.Error())
	}
	if out.PostageResult == nil {
		return nil, nil, c.malformed(body, "missing postage_result")
	}
	return out.PostageResult, body, nil
}

// ShippingCost resolves the cost of shipping to postcode. A nil profile or
// empty service code falls back to the client defaults.
func (c *Client) ShippingCost(ctx context.Context, postcode string, profile *Profile, serviceCode string) (*Cost, error) {
	q := Query{ToPostcode: postcode, ServiceCode: serviceCode}
	if profile != nil {
		q.Profile = *profile
	}
	if q.ServiceCode == "" {
		q.ServiceCode = c.ServiceCode
	}
	calc, raw, err := c.Calculate(ctx, q)
	if err != nil {
		return nil, err
	}
	amount, err := parseCost(calc.TotalCost)
	if err != nil {
		return nil, c.malformed(raw, "total_cost: "+err.Error())
	}
	return &Cost{AmountCents: amount, Service: calc.Service, Raw: raw}, nil
}

func (c *Client) params(q Query) url.Values {
	from := q.FromPostcode
	if from == "" {
		from = c.FromPostcode
	}
	p := q.Profile.orDefault(c.Profile)
	v := url.Values{}
	v.Set("from_postcode", from)
	v.Set("to_postcode", strings.TrimSpace(q.ToPostcode))
	v.Set("length", formatFloat(p.LengthCM))
	v.Set("width", formatFloat(p.WidthCM))
	v.Set("height", formatFloat(p.HeightCM))
	v.Set("weight", formatFloat(p.WeightKG))
	return v
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("AUTH-KEY", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().Warn("parcel request failed", zap.String("path", path), zap.Error(err))
		return nil, &domain.UpstreamError{Service: serviceName, Message: err.Error(), Kind: domain.ErrUpstreamUnavailable}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode, Message: "read body: " + err.Error(), Kind: domain.ErrUpstreamUnavailable}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := upstreamMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("upstream returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		c.logger().Warn("parcel upstream error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", domain.Snip(body, snippetBytes)),
		)
		return nil, &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode, Message: msg, Snippet: domain.Snip(body, snippetBytes), Kind: domain.ErrUpstreamUnavailable}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		err := c.malformed(body, "unexpected content-type "+resp.Header.Get("Content-Type"))
		if ue, ok := err.(*domain.UpstreamError); ok {
			ue.Status = resp.StatusCode
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) malformed(body []byte, msg string) error {
	snippet := domain.Snip(body, snippetBytes)
	c.logger().Warn("parcel malformed response", zap.String("reason", msg), zap.String("body", snippet))
	return &domain.UpstreamError{Service: serviceName, Message: msg, Snippet: snippet, Kind: domain.ErrUpstreamMalformed}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func upstreamMessage(body []byte) string {
	var out struct {
		Error struct {
			ErrorMessage string `json:"errorMessage"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	return out.Error.ErrorMessage
}

// decodeServices accepts either a single service object or a list.
func decodeServices(raw json.RawMessage) ([]Service, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var one Service
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return []Service{one}, nil
	}
	var many []Service
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// parseCost accepts a JSON number or a numeric string in major units.
func parseCost(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing")
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", domain.Snip([]byte(s), 32))
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative: %s", d)
	}
	return domain.ToMinorUnits(d), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
