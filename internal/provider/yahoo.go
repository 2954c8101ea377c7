package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"rsi-tracker/internal/model"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Yahoo serves stocks, ETFs and indices through the public chart API.
// No API key required.
type Yahoo struct {
	client *http.Client
}

// NewYahoo creates a Yahoo Finance provider.
func NewYahoo() *Yahoo {
	return &Yahoo{client: &http.Client{Timeout: 30 * time.Second}}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooRange maps a timeframe to the widest chart range Yahoo serves
// for it. Minute data is capped at 7 days.
func yahooRange(timeframe string) string {
	switch timeframe {
	case "1m", "5m":
		return "7d"
	case "15m", "1h":
		return "60d"
	default:
		return "2y"
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Meta struct {
		Symbol              string  `json:"symbol"`
		RegularMarketPrice  float64 `json:"regularMarketPrice"`
		ChartPreviousClose  float64 `json:"chartPreviousClose"`
		RegularMarketVolume float64 `json:"regularMarketVolume"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// Pointers because Yahoo fills gaps with null.
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (y *Yahoo) Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error) {
	if !model.ValidTimeframe(timeframe) || timeframe == "4h" {
		// The chart API has no 4h interval.
		return nil, fmt.Errorf("yahoo: unsupported timeframe %q", timeframe)
	}

	q := url.Values{}
	q.Set("interval", timeframe)
	q.Set("range", yahooRange(timeframe))

	var out yahooChartResponse
	if err := getJSON(ctx, y.client, yahooChartURL+url.PathEscape(symbol)+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}

	res, err := chartResult(&out, symbol)
	if err != nil {
		return nil, err
	}
	series := seriesFromChart(res)
	if len(series) == 0 {
		return nil, fmt.Errorf("yahoo: no data for %s", symbol)
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

func (y *Yahoo) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	// The 1d chart's meta block carries the current quote, so one
	// endpoint serves both operations.
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "1d")

	var out yahooChartResponse
	if err := getJSON(ctx, y.client, yahooChartURL+url.PathEscape(symbol)+"?"+q.Encode(), &out); err != nil {
		return model.Quote{}, fmt.Errorf("yahoo: %w", err)
	}

	res, err := chartResult(&out, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	return quoteFromMeta(res, symbol), nil
}

func chartResult(out *yahooChartResponse, symbol string) (*yahooResult, error) {
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s", out.Chart.Error.Code, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: empty result for %s", symbol)
	}
	return &out.Chart.Result[0], nil
}

// seriesFromChart converts a chart result to candles, skipping the null
// bars Yahoo inserts for halts and holidays.
func seriesFromChart(res *yahooResult) model.Series {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	q := res.Indicators.Quote[0]

	series := make(model.Series, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := model.Candle{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		series = append(series, c)
	}
	return series
}

func quoteFromMeta(res *yahooResult, symbol string) model.Quote {
	meta := res.Meta
	quote := model.Quote{
		Symbol: symbol,
		Price:  meta.RegularMarketPrice,
		Volume: meta.RegularMarketVolume,
		Time:   time.Now().UTC(),
	}
	if meta.ChartPreviousClose != 0 {
		quote.Change = meta.RegularMarketPrice - meta.ChartPreviousClose
		quote.ChangePercent = quote.Change / meta.ChartPreviousClose * 100
	}
	return quote
}
