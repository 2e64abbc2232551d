package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"candlesig/internal/app"
	"candlesig/internal/chart"
	"candlesig/internal/decision"
	"candlesig/internal/export"
	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/report"
	"candlesig/internal/service"
	"candlesig/internal/strategy"
)

const defaultConfig = "configs/candlesig.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, `用法: candlesig <command> [flags]

命令:
  analyze   分析单个品种（Binance 或 CSV），输出信号表，可导出/回测/出图
  serve     启动 HTTP 接口与定时任务
  schedule  只运行定时任务，-once 立即执行一次后退出

各命令使用 -h 查看参数。
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "schedule":
		err = runSchedule(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

type analyzeFlags struct {
	config     string
	csv        string
	symbol     string
	interval   string
	limit      int
	profile    string
	strategies string
	backtest   bool
	source     string
	out        string
	format     string
	html       string
	png        string
}

func runAnalyze(args []string) error {
	var f analyzeFlags
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fs.StringVar(&f.config, "config", defaultConfig, "配置文件 (yaml/toml)")
	fs.StringVar(&f.csv, "csv", "", "从 CSV 读取 K 线（date,opening,closing,highest,lowest,turnover_count）")
	fs.StringVar(&f.symbol, "symbol", "", "交易对，CSV 模式下默认取文件名")
	fs.StringVar(&f.interval, "interval", "1d", "K 线周期")
	fs.IntVar(&f.limit, "limit", 0, "K 线数量，0 使用配置")
	fs.StringVar(&f.profile, "profile", "", "profiles.yaml 中的参数组")
	fs.StringVar(&f.strategies, "strategies", "", "策略代码，逗号分隔，空为全部")
	fs.BoolVar(&f.backtest, "backtest", false, "同时运行回测")
	fs.StringVar(&f.source, "source", service.SourceStrategy, "回测信号来源 strategy|multi_stage")
	fs.StringVar(&f.out, "out", "", "导出路径")
	fs.StringVar(&f.format, "format", "csv", "导出格式 csv|parquet")
	fs.StringVar(&f.html, "html", "", "K 线图 HTML 输出路径")
	fs.StringVar(&f.png, "png", "", "K 线图 PNG 输出路径（需要 Chrome）")
	_ = fs.Parse(args)

	a, cleanup, err := InitializeApp(app.ConfigPath(f.config))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.csv != "" {
		n, err := importCSV(ctx, a, &f)
		if err != nil {
			return err
		}
		if f.limit <= 0 {
			f.limit = n
		}
	}
	if strings.TrimSpace(f.symbol) == "" {
		return errors.New("缺少 -symbol")
	}

	opts := a.Config.Analysis
	var types []strategy.Type
	if f.profile != "" {
		entry, err := a.Profiles.GetProfile(f.profile)
		if err != nil {
			return err
		}
		opts = entry.Analysis
		if types, err = entry.StrategyTypes(); err != nil {
			return err
		}
	}
	if f.strategies != "" {
		if types, err = strategy.ParseTypes(f.strategies); err != nil {
			return err
		}
	}

	req := service.Request{Symbol: f.symbol, Interval: f.interval, Limit: f.limit}
	res, err := a.Service.Analyze(ctx, req, opts)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s %s", res.Symbol, res.Interval)
	fmt.Println(report.StatisticsTable(res.Statistics))
	fmt.Println(report.DecisionTable(title+" 多阶段信号", res.Signals))
	if res.Integrity != nil && !res.Integrity.Complete() {
		logger.Warnf("%s 数据不完整: %+v", title, *res.Integrity)
	}

	sreq := service.SignalsRequest{Request: req, Strategies: types, Merge: true}
	signals, err := a.Service.Signals(ctx, sreq)
	if err != nil {
		return err
	}
	fmt.Println(report.SignalsTable(title+" 策略信号", signals))

	if f.backtest {
		bt, err := a.Service.Backtest(ctx, service.BacktestRequest{
			SignalsRequest: sreq,
			Source:         f.source,
			Decision:       opts,
			Options:        a.Config.BacktestOptions(),
		})
		if err != nil {
			return err
		}
		fmt.Println(report.BacktestTable(bt))
	}

	if f.out != "" {
		if err := exportRows(ctx, a, req, opts, f.format, f.out); err != nil {
			return err
		}
	}
	creq := service.ChartRequest{Request: req, Decision: opts}
	if f.html != "" {
		page, err := a.Service.ChartHTML(ctx, creq)
		if err != nil {
			return err
		}
		if err := writeFile(f.html, page); err != nil {
			return err
		}
		logger.Infof("图表已写入 %s", f.html)
	}
	if f.png != "" {
		img, err := a.Service.ChartPNG(ctx, creq, chart.SnapshotOptions{Width: a.Config.Chart.Width, Height: a.Config.Chart.Height})
		if err != nil {
			return err
		}
		if err := writeFile(f.png, img); err != nil {
			return err
		}
		logger.Infof("截图已写入 %s", f.png)
	}
	return nil
}

func importCSV(ctx context.Context, a *App, f *analyzeFlags) (int, error) {
	file, err := os.Open(f.csv)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	candles, err := market.LoadCSV(file)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.csv, err)
	}
	if f.symbol == "" {
		f.symbol = strings.ToUpper(strings.TrimSuffix(filepath.Base(f.csv), filepath.Ext(f.csv)))
	}
	if err := a.Service.Import(ctx, f.symbol, f.interval, candles); err != nil {
		return 0, err
	}
	logger.Infof("从 %s 导入 %d 根 K 线", f.csv, len(candles))
	return len(candles), nil
}

func exportRows(ctx context.Context, a *App, req service.Request, opts decision.Options, format, path string) error {
	exp, err := export.New(format)
	if err != nil {
		return err
	}
	rows, err := a.Service.ExportRows(ctx, req, opts)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == "" {
		path += "." + exp.Extension()
	}
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := exp.Save(rows, path); err != nil {
		return err
	}
	logger.Infof("导出 %d 行到 %s", len(rows), path)
	return nil
}

func mkdirFor(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfig, "配置文件 (yaml/toml)")
	_ = fs.Parse(args)

	a, cleanup, err := InitializeApp(app.ConfigPath(*cfgPath))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Scheduler.Start()
	defer a.Scheduler.Stop()
	return a.Server.Start(ctx)
}

func runSchedule(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfig, "配置文件 (yaml/toml)")
	once := fs.Bool("once", false, "立即执行全部任务一次后退出")
	_ = fs.Parse(args)

	a, cleanup, err := InitializeApp(app.ConfigPath(*cfgPath))
	if err != nil {
		return err
	}
	defer cleanup()

	tasks := a.Scheduler.Tasks()
	if len(tasks) == 0 {
		return errors.New("配置中没有 schedule 任务")
	}
	if *once {
		for _, t := range tasks {
			a.Scheduler.RunNow(t)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.Scheduler.Start()
	<-ctx.Done()
	a.Scheduler.Stop()
	return nil
}
