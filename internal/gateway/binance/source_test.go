package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const klinesBody = `[
 [1700000000000,"100.0","110.0","95.0","105.0","1234.5",1700086399999,"0",42,"0","0","0"],
 [1700086400000,"105.0","112.0","101.0","111.0","2000",1700172799999,"0",17,"0","0","0"]
]`

func TestFetchHistory(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	src, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	candles, err := src.FetchHistory(context.Background(), " btcusdt ", "1D", 5000)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d", len(candles))
	}
	c := candles[0]
	if c.OpenTime != 1700000000000 || c.Open != 100 || c.High != 110 || c.Low != 95 || c.Close != 105 || c.Volume != 1234.5 || c.Trades != 42 {
		t.Fatalf("candle = %+v", c)
	}
	for _, want := range []string{"symbol=BTCUSDT", "interval=1d", "limit=1000"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchHistoryValidates(t *testing.T) {
	src, _ := New(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := src.FetchHistory(context.Background(), "", "1d", 10); err == nil {
		t.Fatalf("expected symbol error")
	}
	if _, err := src.FetchHistory(context.Background(), "BTCUSDT", " ", 10); err == nil {
		t.Fatalf("expected interval error")
	}
}
