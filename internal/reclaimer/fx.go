package reclaimer

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("reclaimer",
	fx.Provide(New),
)

// Start runs the sweep loop for the lifetime of the application.
func Start(lc fx.Lifecycle, r *Reclaimer) {
	loopCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.RunForever(loopCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
