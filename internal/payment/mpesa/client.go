package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"

	"forexhub/internal/metrics"
	"forexhub/internal/payment"
)

const (
	SandboxBaseURL = "https://sandbox.safaricom.co.ke"

	oauthPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"

	timestampLayout = "20060102150405"
	tokenMargin     = time.Minute

	// Daraja rejects longer values.
	maxTransactionDesc = 13
)

// Daraja timestamps are East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	CallbackURL     string
	TransactionType string
	ProxyAddr       string
	Timeout         time.Duration
}

// APIError is a non-2xx answer, or a 2xx answer whose ResponseCode is not "0".
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa api: %s: %s", e.Status, e.Body)
}

// Client talks to the Daraja API. It is safe for concurrent use.
type Client struct {
	cfg        Config
	HTTPClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TransactionType == "" {
		cfg.TransactionType = "CustomerPayBillOnline"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		HTTPClient: newHTTPClient(cfg, logger),
		logger:     logger,
		now:        time.Now,
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mpesa-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// a rejected request says nothing about gateway health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

func newHTTPClient(cfg Config, logger *slog.Logger) *http.Client {
	if cfg.ProxyAddr == "" {
		return &http.Client{Timeout: cfg.Timeout}
	}

	dialer, err := proxy.FromURL(&url.URL{Scheme: "socks5h", Host: cfg.ProxyAddr}, proxy.Direct)
	if err != nil {
		logger.Error("failed to create SOCKS5 dialer, calling gateway directly", "proxy", cfg.ProxyAddr, "error", err)
		return &http.Client{Timeout: cfg.Timeout}
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}
}

// CircuitState exposes the breaker state for health reporting.
func (c *Client) CircuitState() gobreaker.State {
	return c.cb.State()
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// RequestCharge sends an STK push to the customer's phone. Amounts are
// whole shillings, fractions are rounded up.
func (c *Client) RequestCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResponse, error) {
	// a cut reference would no longer identify the payment
	if req.AccountReference == "" || len(req.AccountReference) > payment.AccountReferenceLen {
		return nil, errors.Wrapf(payment.ErrInvalidRequest, "account reference %q must be 1-%d characters",
			req.AccountReference, payment.AccountReferenceLen)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		ts := c.now().In(eat).Format(timestampLayout)
		body := stkPushRequest{
			BusinessShortCode: c.cfg.ShortCode,
			Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
			Timestamp:         ts,
			TransactionType:   c.cfg.TransactionType,
			Amount:            req.Amount.Ceil().IntPart(),
			PartyA:            req.PhoneNumber,
			PartyB:            c.cfg.ShortCode,
			PhoneNumber:       req.PhoneNumber,
			CallBackURL:       c.cfg.CallbackURL,
			AccountReference:  req.AccountReference,
			TransactionDesc:   truncate(req.Description, maxTransactionDesc),
		}

		var resp stkPushResponse
		if err := c.doJSON(ctx, "stkpush", http.MethodPost, stkPath, token, body, &resp); err != nil {
			return nil, err
		}
		if resp.ResponseCode != "0" {
			raw, _ := json.Marshal(resp)
			return nil, &APIError{StatusCode: http.StatusOK, Status: "ResponseCode " + resp.ResponseCode, Body: string(raw)}
		}
		return &payment.ChargeResponse{
			MerchantRequestID: resp.MerchantRequestID,
			CheckoutRequestID: resp.CheckoutRequestID,
			ResponseCode:      resp.ResponseCode,
			CustomerMessage:   resp.CustomerMessage,
		}, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "stk push")
	}
	return result.(*payment.ChargeResponse), nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns the cached OAuth token, fetching a new one when it is
// missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", errors.Wrap(err, "build oauth request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var resp oauthResponse
	if err := c.do(req, "oauth", &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &APIError{StatusCode: http.StatusOK, Status: "empty access token"}
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > 2*tokenMargin {
		ttl -= tokenMargin
	}

	c.token = resp.AccessToken
	c.tokenExpiry = now.Add(ttl)
	return c.token, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.GatewayRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return errors.Wrapf(err, "%s request", endpoint)
	}
	defer resp.Body.Close()
	metrics.GatewayRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "read %s response", endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("mpesa api error", "endpoint", endpoint, "status", resp.StatusCode, "body", string(body))
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
