package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rsi-tracker/internal/model"
)

const binanceBaseURL = "https://api.binance.com/api/v3"

// Binance serves crypto pairs through the public REST API. No API key
// required for market data.
type Binance struct {
	client *http.Client
}

// NewBinance creates a Binance provider.
func NewBinance() *Binance {
	return &Binance{client: &http.Client{Timeout: 30 * time.Second}}
}

func (b *Binance) Name() string { return "binance" }

// NormalizeSymbol converts "BTC/USD" style pairs to Binance's "BTCUSDT"
// format. Pairs already quoted in USDT pass through unchanged.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	if strings.HasSuffix(s, "USDT") {
		return s
	}
	if strings.HasSuffix(s, "USD") {
		return s + "T"
	}
	return s
}

func (b *Binance) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if !model.ValidTimeframe(timeframe) {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", timeframe)
	}

	q := url.Values{}
	q.Set("symbol", NormalizeSymbol(symbol))
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	if err := getJSON(ctx, b.client, binanceBaseURL+"/klines?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	return seriesFromKlines(raw)
}

// seriesFromKlines decodes a klines response. Binance reports errors as
// an object and data as an array of arrays, so the shape is sniffed
// before decoding.
func seriesFromKlines(raw json.RawMessage) (model.Series, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Code != 0 {
			return nil, fmt.Errorf("binance: api error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return nil, errors.New("binance: unexpected response shape")
	}

	var klines [][]interface{}
	if err := json.Unmarshal(raw, &klines); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}

	// Kline layout: [0] open time ms, [1..4] OHLC as strings, [5] volume.
	series := make(model.Series, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}
		ms, ok := k[0].(float64)
		if !ok {
			continue
		}
		open, ok1 := kfloat(k[1])
		high, ok2 := kfloat(k[2])
		low, ok3 := kfloat(k[3])
		closep, ok4 := kfloat(k[4])
		volume, _ := kfloat(k[5])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		series = append(series, model.Candle{
			Time:   time.UnixMilli(int64(ms)).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closep,
			Volume: volume,
		})
	}
	if len(series) == 0 {
		return nil, errors.New("binance: empty klines response")
	}
	return series, nil
}

func kfloat(v interface{}) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`

	// Set only on error responses.
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (b *Binance) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	q := url.Values{}
	q.Set("symbol", NormalizeSymbol(symbol))

	var tick binanceTicker
	if err := getJSON(ctx, b.client, binanceBaseURL+"/ticker/24hr?"+q.Encode(), &tick); err != nil {
		return model.Quote{}, fmt.Errorf("binance: %w", err)
	}
	if tick.Code != 0 {
		return model.Quote{}, fmt.Errorf("binance: api error %d: %s", tick.Code, tick.Msg)
	}

	price, err := strconv.ParseFloat(tick.LastPrice, 64)
	if err != nil {
		return model.Quote{}, fmt.Errorf("binance: bad price %q: %w", tick.LastPrice, err)
	}
	change, _ := strconv.ParseFloat(tick.PriceChange, 64)
	changePct, _ := strconv.ParseFloat(tick.PriceChangePercent, 64)
	volume, _ := strconv.ParseFloat(tick.Volume, 64)

	return model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		Time:          time.Now().UTC(),
	}, nil
}
