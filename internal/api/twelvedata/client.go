package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/SignalEngine/internal/platform/http"
	"github.com/Alias1177/SignalEngine/models"
)

const defaultBaseURL = "https://api.twelvedata.com"

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// response represents the time_series payload. Forex series carry no volume.
type response struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume,omitempty"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  options.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetries:      options.MaxRetries,
			MaxRetryTimeout: options.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// FetchCandles returns up to lookback candles, oldest first. Every failure
// is reported as a DataUnavailableError.
func (c *Client) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, lookback int) ([]models.Candle, error) {
	candles, err := c.fetch(ctx, symbol, tf, lookback)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).Msg("Candle fetch failed")
		return nil, &models.DataUnavailableError{Symbol: symbol, Timeframe: tf, Err: err}
	}
	return candles, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, tf models.Timeframe, lookback int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(tf))
	q.Set("outputsize", strconv.Itoa(lookback))
	q.Set("timezone", "UTC")

	endpoint := c.baseURL + "/time_series?" + q.Encode()
	c.logger.Debug().Str("symbol", symbol).Str("interval", string(tf)).Int("outputsize", lookback).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("twelve data error %d: %s", data.Code, data.Message)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty data returned")
	}

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		candle, err := parseCandle(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	// oldest first for indicator calculations
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// stripURL drops the request URL from transport errors so they are safe to
// log and return to API callers
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s time_series: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func parseCandle(datetime, open, high, low, closePrice, volume string) (models.Candle, error) {
	ts, err := parseTimestamp(datetime)
	if err != nil {
		return models.Candle{}, err
	}

	var candle models.Candle
	candle.Timestamp = ts

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", open, &candle.Open},
		{"high", high, &candle.High},
		{"low", low, &candle.Low},
		{"close", closePrice, &candle.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing %s at %s: %w", f.name, datetime, err)
		}
		*f.dst = v
	}

	if volume != "" {
		v, err := strconv.ParseFloat(volume, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing volume at %s: %w", datetime, err)
		}
		candle.Volume = int64(v)
	}

	return candle, nil
}

// parseTimestamp accepts intraday and daily datetime formats
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
