package main

import (
	"context"

	"github.com/streaminsync/streaminsync/internal/api"
	"github.com/streaminsync/streaminsync/internal/api/ws"
	"github.com/streaminsync/streaminsync/internal/app"
	"github.com/streaminsync/streaminsync/internal/clock"
	"github.com/streaminsync/streaminsync/internal/debug"
	"github.com/streaminsync/streaminsync/internal/receiver"
	"github.com/streaminsync/streaminsync/internal/sender"
	"github.com/streaminsync/streaminsync/pkg/shell"
)

func main() {
	// 1. Core modules: app, api/ws, clock

	app.Init() // init config and logs

	api.Init() // init API before all others
	ws.Init()  // init WS API endpoint

	clock.Init() // shared clock of both pipelines

	// 2. Main modules

	receiver.Init()
	sender.Init()

	// 3. Helper modules

	debug.Init()

	sig := shell.WaitSignal(context.Background())
	app.Logger.Info().Msgf("exit with signal: %s", sig)

	sender.Stop()
	receiver.Stop()
}
