package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultCoinbaseBaseURL = "https://api.coinbase.com"
	coinbaseCandlesPath    = "/api/v3/brokerage/products/%s/candles"
	defaultGranularity     = "ONE_DAY"
	defaultDaysBack        = 350
	// Tokens are valid for two minutes, per the Coinbase CDP auth scheme.
	marketTokenTTL            = 2 * time.Minute
	defaultMarketTimeout      = 15 * time.Second
	maxMarketResponseBodySize = 4 << 20
	secondsPerDay             = 86400
)

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HistoricalPricesRequest selects the candle window for one ticker.
type HistoricalPricesRequest struct {
	Ticker      string
	Granularity string
	DaysBack    int
}

// HistoricalPrices is the passthrough envelope returned to clients. Success
// is false when the upstream provider rejected the request; Error then holds
// the provider's message.
type HistoricalPrices struct {
	Success     bool            `json:"success"`
	Ticker      string          `json:"ticker"`
	Granularity string          `json:"granularity,omitempty"`
	DaysBack    int             `json:"days_back,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type marketDataClient struct {
	keyName   string
	keySecret string
	baseURL   string
	client    HTTPDoer
	logger    *slog.Logger
	now       func() time.Time
	nonce     func() string
}

func newMarketDataClient(cfg CoinbaseConfig, logger *slog.Logger) *marketDataClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultCoinbaseBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultDuration(cfg.Timeout, defaultMarketTimeout)}
	}
	return &marketDataClient{
		keyName:   strings.TrimSpace(cfg.KeyName),
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
		now:       time.Now,
		nonce:     func() string { return uuid.NewString() },
	}
}

// buildToken signs a short-lived ES256 bearer token for one upstream call.
// The uri claim binds the token to a single method+host+path; the nonce
// header makes each token unique.
func (m *marketDataClient) buildToken(uri string) (string, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(m.keySecret))
	if err != nil {
		return "", fmt.Errorf("parse market data key: %w", err)
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": m.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(marketTokenTTL).Unix(),
		"uri": uri,
	})
	token.Header["kid"] = m.keyName
	token.Header["nonce"] = m.nonce()

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign market data token: %w", err)
	}
	return signed, nil
}

// GetHistoricalPrices fetches historical candles for a ticker from the
// market-data provider. A provider-side rejection is reported inside the
// envelope (Success=false); only credential and transport problems surface
// as errors.
func (c *Core) GetHistoricalPrices(ctx context.Context, req HistoricalPricesRequest) (*HistoricalPrices, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return nil, NewError(ErrCodeInvalidRequest, "ticker is required")
	}
	granularity := strings.TrimSpace(req.Granularity)
	if granularity == "" {
		granularity = defaultGranularity
	}
	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}

	m := c.market
	if m.keyName == "" || m.keySecret == "" {
		return nil, NewError(ErrCodeServiceUnavailable, "market data API credentials not set")
	}

	parsedBase, err := url.Parse(m.baseURL)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "invalid market data base url", err)
	}
	path := fmt.Sprintf(coinbaseCandlesPath, ticker)

	// The uri claim excludes the scheme and query parameters.
	token, err := m.buildToken(fmt.Sprintf("%s %s%s", http.MethodGet, parsedBase.Host, path))
	if err != nil {
		return nil, WrapError(ErrCodeServiceUnavailable, "failed to build market data token", err)
	}

	now := m.now()
	query := url.Values{}
	query.Set("start", strconv.FormatInt(now.Unix()-int64(daysBack)*secondsPerDay, 10))
	query.Set("end", strconv.FormatInt(now.Unix(), 10))
	query.Set("granularity", granularity)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "build market data request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, WrapError(ErrCodeServiceUnavailable, "market data request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarketResponseBodySize))
	if err != nil {
		return nil, WrapError(ErrCodeServiceUnavailable, "read market data response", err)
	}

	if resp.StatusCode != http.StatusOK {
		m.logger.Warn("market data upstream rejected request",
			"ticker", ticker,
			"status", resp.StatusCode,
		)
		return &HistoricalPrices{
			Success: false,
			Ticker:  ticker,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}

	return &HistoricalPrices{
		Success:     true,
		Ticker:      ticker,
		Granularity: granularity,
		DaysBack:    daysBack,
		Data:        json.RawMessage(body),
	}, nil
}
