package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var assets embed.FS

// StaticFS 返回静态资源的 http.FileSystem。
func StaticFS() (http.FileSystem, error) {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}
	return http.FS(sub), nil
}

// Index 返回嵌入的首页内容。
func Index() ([]byte, error) {
	return assets.ReadFile("static/index.html")
}
