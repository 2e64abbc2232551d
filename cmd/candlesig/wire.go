//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"candlesig/internal/app"
	"candlesig/internal/config"
	"candlesig/internal/config/writer"
	"candlesig/internal/scheduler"
	"candlesig/internal/service"
	"candlesig/internal/transport/http/api"
)

// App holds application dependencies built by Wire.
type App struct {
	Config    *config.Config
	Service   *service.Service
	Server    *api.Server
	Scheduler *scheduler.Scheduler
	Profiles  *writer.ProfileWriter
}

// InitializeApp builds App via Wire. Caller must invoke cleanup when done.
func InitializeApp(path app.ConfigPath) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideSource,
		app.ProvideSeriesStore,
		app.ProvideCache,
		app.ProvideSignalStore,
		app.ProvideService,
		app.ProvideProfileWriter,
		app.ProvideServer,
		app.ProvideScheduler,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
