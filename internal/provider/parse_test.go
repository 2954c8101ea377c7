package provider

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ────────────────────────────────────────────────────────────
// Symbol handling
// ────────────────────────────────────────────────────────────

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"BTC/USD", "BTCUSDT"},
		{"ETH/USD", "ETHUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{"BTCUSDT", "BTCUSDT"}, // already normalized, must not grow a second T
		{"btc/usd", "BTCUSDT"},
		{"SOL/BTC", "SOLBTC"},
		{"DOGEUSD", "DOGEUSDT"},
	}
	for _, c := range cases {
		if got := NormalizeSymbol(c.in); got != c.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsCrypto(t *testing.T) {
	cases := []struct {
		symbol string
		want   bool
	}{
		{"AAPL", false},
		{"GOOGL", false},
		{"BTC/USD", true},
		{"ETH/USDT", true},
		{"DOGEUSDT", true},
		{"solbtc", true},
		{"WETH", true}, // ETH suffix routes to crypto
		{"MSFT", false},
	}
	for _, c := range cases {
		if got := IsCrypto(c.symbol); got != c.want {
			t.Errorf("IsCrypto(%q) = %v, want %v", c.symbol, got, c.want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Yahoo chart parsing
// ────────────────────────────────────────────────────────────

const yahooFixture = `{
	"chart": {
		"result": [{
			"meta": {
				"symbol": "AAPL",
				"regularMarketPrice": 103.0,
				"chartPreviousClose": 100.0,
				"regularMarketVolume": 1000
			},
			"timestamp": [1700000000, 1700086400, 1700172800],
			"indicators": {
				"quote": [{
					"open":   [100.0, null, 102.0],
					"high":   [101.0, null, 103.5],
					"low":    [99.5,  null, 101.5],
					"close":  [100.5, null, 103.0],
					"volume": [12000, null, 15000]
				}]
			}
		}],
		"error": null
	}
}`

func TestSeriesFromChart_SkipsNullBars(t *testing.T) {
	var out yahooChartResponse
	if err := json.Unmarshal([]byte(yahooFixture), &out); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	res, err := chartResult(&out, "AAPL")
	if err != nil {
		t.Fatalf("chartResult: %v", err)
	}
	series := seriesFromChart(res)

	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2 (null bar skipped)", len(series))
	}
	if series[0].Close != 100.5 || series[1].Close != 103.0 {
		t.Errorf("closes = %v, %v", series[0].Close, series[1].Close)
	}
	if !series[0].Time.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("first bar time = %v", series[0].Time)
	}
	if series[1].Volume != 15000 {
		t.Errorf("volume = %v, want 15000", series[1].Volume)
	}
}

func TestChartResult_Error(t *testing.T) {
	raw := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`
	var out yahooChartResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	_, err := chartResult(&out, "NOPE")
	if err == nil {
		t.Fatal("expected error for chart error response")
	}
	if !strings.Contains(err.Error(), "Not Found") {
		t.Errorf("error = %v, want the API code surfaced", err)
	}
}

func TestQuoteFromMeta_ComputesChange(t *testing.T) {
	var out yahooChartResponse
	if err := json.Unmarshal([]byte(yahooFixture), &out); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	res, _ := chartResult(&out, "AAPL")

	quote := quoteFromMeta(res, "AAPL")
	if quote.Price != 103.0 {
		t.Errorf("price = %v, want 103.0", quote.Price)
	}
	if quote.Change != 3.0 {
		t.Errorf("change = %v, want 3.0", quote.Change)
	}
	if quote.ChangePercent != 3.0 {
		t.Errorf("change percent = %v, want 3.0", quote.ChangePercent)
	}
}

func TestYahooRange(t *testing.T) {
	cases := map[string]string{
		"1m": "7d", "5m": "7d",
		"15m": "60d", "1h": "60d",
		"1d": "2y",
	}
	for tf, want := range cases {
		if got := yahooRange(tf); got != want {
			t.Errorf("yahooRange(%q) = %q, want %q", tf, got, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Binance kline parsing
// ────────────────────────────────────────────────────────────

func TestSeriesFromKlines(t *testing.T) {
	raw := `[
		[1700000000000, "35000.1", "35500.0", "34800.0", "35200.5", "123.45", 1700003599999, "0", 10, "0", "0", "0"],
		[1700003600000, "35200.5", "35600.0", "35100.0", "35400.0", "98.7",  1700007199999, "0", 10, "0", "0", "0"]
	]`

	series, err := seriesFromKlines(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("seriesFromKlines: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2", len(series))
	}
	if series[0].Open != 35000.1 || series[0].Close != 35200.5 {
		t.Errorf("first candle = %+v", series[0])
	}
	if series[0].Volume != 123.45 {
		t.Errorf("volume = %v, want 123.45", series[0].Volume)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !series[0].Time.Equal(want) {
		t.Errorf("time = %v, want %v", series[0].Time, want)
	}
}

func TestSeriesFromKlines_APIError(t *testing.T) {
	raw := `{"code":-1121,"msg":"Invalid symbol."}`

	_, err := seriesFromKlines(json.RawMessage(raw))
	if err == nil {
		t.Fatal("expected error for API error object")
	}
	if !strings.Contains(err.Error(), "Invalid symbol") {
		t.Errorf("error = %v, want the API message surfaced", err)
	}
}

func TestSeriesFromKlines_Empty(t *testing.T) {
	if _, err := seriesFromKlines(json.RawMessage(`[]`)); err == nil {
		t.Error("expected error for empty klines")
	}
}

// ────────────────────────────────────────────────────────────
// Alpha Vantage parsing
// ────────────────────────────────────────────────────────────

func TestSeriesFromAV(t *testing.T) {
	raw := map[string]json.RawMessage{
		"Meta Data": json.RawMessage(`{}`),
		"Time Series (Daily)": json.RawMessage(`{
			"2026-03-02": {"1. open": "101.0", "2. high": "103.0", "3. low": "100.0", "4. close": "102.5", "5. volume": "1200"},
			"2026-02-27": {"1. open": "99.0",  "2. high": "101.0", "3. low": "98.5",  "4. close": "100.5", "5. volume": "1100"},
			"2026-02-26": {"1. open": "98.0",  "2. high": "99.5",  "3. low": "97.0",  "4. close": "99.0",  "5. volume": "1000"}
		}`),
	}

	series, err := seriesFromAV(raw, 2)
	if err != nil {
		t.Fatalf("seriesFromAV: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2 (limit applied)", len(series))
	}
	// Ascending order with the limit keeping the most recent bars.
	if !series[0].Time.Before(series[1].Time) {
		t.Error("series not in ascending time order")
	}
	if series[1].Close != 102.5 {
		t.Errorf("latest close = %v, want 102.5", series[1].Close)
	}
}

func TestSeriesFromAV_ErrorMessage(t *testing.T) {
	raw := map[string]json.RawMessage{
		"Error Message": json.RawMessage(`"Invalid API call."`),
	}
	_, err := seriesFromAV(raw, 100)
	if err == nil || !strings.Contains(err.Error(), "Invalid API call") {
		t.Errorf("error = %v, want the API message surfaced", err)
	}
}

func TestSeriesFromAV_ThrottleNote(t *testing.T) {
	raw := map[string]json.RawMessage{
		"Note": json.RawMessage(`"Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."`),
	}
	_, err := seriesFromAV(raw, 100)
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("error = %v, want throttled", err)
	}
}

func TestParseAVTime(t *testing.T) {
	daily, err := parseAVTime("2026-03-02")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if daily.Year() != 2026 || daily.Month() != 3 || daily.Day() != 2 {
		t.Errorf("daily = %v", daily)
	}

	intraday, err := parseAVTime("2026-03-02 19:55:00")
	if err != nil {
		t.Fatalf("intraday: %v", err)
	}
	if intraday.Hour() != 19 || intraday.Minute() != 55 {
		t.Errorf("intraday = %v", intraday)
	}

	if _, err := parseAVTime("not-a-time"); err == nil {
		t.Error("expected error for junk timestamp")
	}
}
