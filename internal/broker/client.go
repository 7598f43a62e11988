// Package broker talks to the exchange REST surfaces for both the spot and
// futures venues: quotes, symbol filters, balances, positions, and market
// order placement. Every numeric field in venue JSON is a string-encoded
// decimal.
package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/config"
)

const (
	defaultSpotURL    = "https://api.binance.com"
	defaultFuturesURL = "https://fapi.binance.com"
	testnetSpotURL    = "https://testnet.binance.vision"
	testnetFuturesURL = "https://testnet.binancefuture.com"
)

// Credentials hold the venue API key pair, sourced from the environment.
type Credentials struct {
	Key    string
	Secret string
}

// Client is a REST client for one (spot, futures) venue pair. Each engine
// owns its own Client; clients are never shared across symbols.
type Client struct {
	http       *http.Client
	log        zerolog.Logger
	spotURL    string
	futURL     string
	creds      Credentials
	recvWindow int
	now        func() time.Time
}

// New builds a client from the exchange config, switching to the testnet
// base URLs when configured.
func New(cfg config.Exchange, creds Credentials, log zerolog.Logger) *Client {
	spotURL := cfg.SpotRESTURL
	futURL := cfg.FuturesRESTURL
	if cfg.Testnet {
		spotURL, futURL = testnetSpotURL, testnetFuturesURL
	}
	if spotURL == "" {
		spotURL = defaultSpotURL
	}
	if futURL == "" {
		futURL = defaultFuturesURL
	}
	recvWindow := cfg.RecvWindowMs
	if recvWindow <= 0 {
		recvWindow = 5000
	}
	return &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
		spotURL:    strings.TrimSuffix(spotURL, "/"),
		futURL:     strings.TrimSuffix(futURL, "/"),
		creds:      creds,
		recvWindow: recvWindow,
		now:        time.Now,
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.creds.Secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// do performs one request and decodes the response into out. Signed requests
// get timestamp, recvWindow, and an HMAC signature appended.
func (c *Client) do(ctx context.Context, method, base, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", fmt.Sprintf("%d", c.now().UnixMilli()))
		params.Set("recvWindow", fmt.Sprintf("%d", c.recvWindow))
		params.Set("signature", c.sign(params.Encode()))
	}

	u := base + path
	var body io.Reader
	if method == http.MethodGet {
		u += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.creds.Key != "" {
		req.Header.Set("X-MBX-APIKEY", c.creds.Key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr == nil && apiErr.Code != 0 {
			return apiErr
		}
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
