package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Exporter 将导出行写入文件。
type Exporter interface {
	Save(rows []Row, path string) error
	Extension() string
}

// New 按格式返回实现（csv、parquet），不支持时返回错误。
func New(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv", "":
		return CSVExporter{}, nil
	case "parquet":
		return ParquetExporter{}, nil
	default:
		return nil, fmt.Errorf("不支持的导出格式 %q (可选: csv, parquet)", format)
	}
}

// ParquetExporter 列式存储，便于离线分析。
type ParquetExporter struct{}

func (ParquetExporter) Extension() string { return "parquet" }

func (ParquetExporter) Save(rows []Row, path string) error {
	return parquet.WriteFile(path, rows)
}

// CSVExporter 表头与 LoadCSV 的列名兼容，导出结果可直接再次读入。
type CSVExporter struct{}

func (CSVExporter) Extension() string { return "csv" }

var csvHeader = []string{"date", "opening", "highest", "lowest", "closing", "turnover_count", "signal", "strength", "strategy", "action", "score", "patterns"}

func (CSVExporter) Save(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			time.UnixMilli(r.Date).UTC().Format("2006-01-02 15:04:05"),
			ff(r.Open), ff(r.High), ff(r.Low), ff(r.Close), ff(r.Volume),
			r.Signal, r.Strength, r.Strategy, r.Action, "", r.Patterns,
		}
		if r.Signal != "" {
			rec[10] = ff(r.Score)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
