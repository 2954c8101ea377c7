package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"rsi-tracker/internal/model"
)

const alphaVantageURL = "https://www.alphavantage.co/query"

// AlphaVantage serves stocks through the Alpha Vantage REST API. Used as
// the stock fallback when an API key is configured.
type AlphaVantage struct {
	apiKey string
	client *http.Client
}

// NewAlphaVantage creates an Alpha Vantage provider.
func NewAlphaVantage(apiKey string) *AlphaVantage {
	return &AlphaVantage{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

var avFunctions = map[string]string{
	"1d":  "TIME_SERIES_DAILY",
	"1h":  "TIME_SERIES_INTRADAY",
	"15m": "TIME_SERIES_INTRADAY",
	"5m":  "TIME_SERIES_INTRADAY",
}

// avIntervals maps intraday timeframes to the interval strings the API
// accepts.
var avIntervals = map[string]string{
	"1h":  "60min",
	"15m": "15min",
	"5m":  "5min",
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (a *AlphaVantage) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if a.apiKey == "" {
		return nil, errors.New("alphavantage: api key not configured")
	}
	fn, ok := avFunctions[timeframe]
	if !ok {
		return nil, fmt.Errorf("alphavantage: unsupported timeframe %q", timeframe)
	}

	q := url.Values{}
	q.Set("function", fn)
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)
	q.Set("outputsize", "full")
	if iv, ok := avIntervals[timeframe]; ok {
		q.Set("interval", iv)
	}

	var raw map[string]json.RawMessage
	if err := getJSON(ctx, a.client, alphaVantageURL+"?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}
	return seriesFromAV(raw, limit)
}

// seriesFromAV extracts the time series from a (already decoded) Alpha
// Vantage response. The series key varies by function, so it is found by
// substring.
func seriesFromAV(raw map[string]json.RawMessage, limit int) (model.Series, error) {
	if msg, ok := raw["Error Message"]; ok {
		var s string
		json.Unmarshal(msg, &s)
		return nil, fmt.Errorf("alphavantage: %s", s)
	}

	var seriesKey string
	for k := range raw {
		if strings.Contains(k, "Time Series") {
			seriesKey = k
			break
		}
	}
	if seriesKey == "" {
		if note, ok := raw["Note"]; ok {
			var s string
			json.Unmarshal(note, &s)
			return nil, fmt.Errorf("alphavantage: throttled: %s", s)
		}
		return nil, errors.New("alphavantage: no time series in response")
	}

	var bars map[string]avBar
	if err := json.Unmarshal(raw[seriesKey], &bars); err != nil {
		return nil, fmt.Errorf("alphavantage: decode series: %w", err)
	}

	series := make(model.Series, 0, len(bars))
	for ts, bar := range bars {
		at, err := parseAVTime(ts)
		if err != nil {
			continue
		}
		c := model.Candle{Time: at}
		if c.Open, err = strconv.ParseFloat(bar.Open, 64); err != nil {
			continue
		}
		if c.High, err = strconv.ParseFloat(bar.High, 64); err != nil {
			continue
		}
		if c.Low, err = strconv.ParseFloat(bar.Low, 64); err != nil {
			continue
		}
		if c.Close, err = strconv.ParseFloat(bar.Close, 64); err != nil {
			continue
		}
		c.Volume, _ = strconv.ParseFloat(bar.Volume, 64)
		series = append(series, c)
	}
	if len(series) == 0 {
		return nil, errors.New("alphavantage: empty time series")
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

func parseAVTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

type avQuoteResponse struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if a.apiKey == "" {
		return model.Quote{}, errors.New("alphavantage: api key not configured")
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)

	var out avQuoteResponse
	if err := getJSON(ctx, a.client, alphaVantageURL+"?"+q.Encode(), &out); err != nil {
		return model.Quote{}, fmt.Errorf("alphavantage: %w", err)
	}
	// Unknown symbols come back as an empty Global Quote object.
	if out.Quote.Price == "" {
		return model.Quote{}, fmt.Errorf("alphavantage: no quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(out.Quote.Price, 64)
	if err != nil {
		return model.Quote{}, fmt.Errorf("alphavantage: bad price %q: %w", out.Quote.Price, err)
	}
	change, _ := strconv.ParseFloat(out.Quote.Change, 64)
	changePct, _ := strconv.ParseFloat(strings.TrimSuffix(out.Quote.ChangePercent, "%"), 64)
	volume, _ := strconv.ParseFloat(out.Quote.Volume, 64)

	return model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		Time:          time.Now().UTC(),
	}, nil
}
