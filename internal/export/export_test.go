package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"candlesig/internal/analysis/pattern"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

const day = int64(86400000)

func sample() []Row {
	candles := []market.Candle{
		{OpenTime: 0, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{OpenTime: day, Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 150},
	}
	signals := []signal.Signal{{Date: day, Price: 11.5, Type: signal.Buy, Strength: signal.Strong, Strategies: []string{"M", "R"}, Score: 4}}
	patterns := []pattern.Occurrence{{Index: 1, Name: "锤子线"}, {Index: 1, Name: "看涨吞没"}}
	return BuildRows(candles, signals, patterns)
}

func TestBuildRows(t *testing.T) {
	rows := sample()
	if len(rows) != 2 || rows[0].Signal != "" || rows[1].Signal != "buy" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1].Strategy != "M,R" || rows[1].Patterns != "锤子线|看涨吞没" || rows[1].Score != 4 {
		t.Fatalf("row = %+v", rows[1])
	}
}

func TestCSVRoundTripThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := (CSVExporter{}).Save(sample(), path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	candles, err := market.LoadCSV(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(candles) != 2 || candles[1].Close != 11.5 || candles[1].Volume != 150 {
		t.Fatalf("candles = %+v", candles)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	exp, err := New("parquet")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := exp.Save(sample(), path); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[1].Strategy != "M,R" || rows[1].Close != 11.5 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := New("xlsx"); err == nil {
		t.Fatalf("expected error")
	}
}
