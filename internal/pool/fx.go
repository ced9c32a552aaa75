package pool

import (
	"github.com/sharenet/packetpool/internal/pool/repository"
	"github.com/sharenet/packetpool/internal/pool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pool.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
