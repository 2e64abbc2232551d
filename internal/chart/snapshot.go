package chart

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"candlesig/internal/logger"
)

// SnapshotOptions 无头浏览器截图参数。
type SnapshotOptions struct {
	Width   int
	Height  int
	Wait    time.Duration
	Timeout time.Duration
	Quality int
}

func (o SnapshotOptions) withDefaults() SnapshotOptions {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Wait <= 0 {
		o.Wait = 1500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 90
	}
	return o
}

// Snapshot 渲染 K 线页面并用无头 Chrome 截图，返回 PNG 字节。需要本机安装 Chrome/Chromium。
func Snapshot(ctx context.Context, in Input, so SnapshotOptions) ([]byte, error) {
	so = so.withDefaults()
	var page bytes.Buffer
	if err := RenderKline(&page, in); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "candlesig-chart-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "kline.html")
	if err := os.WriteFile(path, page.Bytes(), 0o600); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.WindowSize(so.Width, so.Height),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	ctx, cancel := context.WithTimeout(ctx, so.Timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var shot []byte
	start := time.Now()
	err = chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(so.Width), int64(so.Height)),
		chromedp.Navigate("file://"+path),
		chromedp.WaitVisible("canvas", chromedp.ByQuery),
		chromedp.Sleep(so.Wait),
		chromedp.FullScreenshot(&shot, so.Quality),
	)
	if err != nil {
		return nil, fmt.Errorf("chart snapshot: %w", err)
	}
	logger.Debugf("[chart] snapshot %s %dx%d %d bytes in %s", in.Title, so.Width, so.Height, len(shot), time.Since(start))
	return shot, nil
}
