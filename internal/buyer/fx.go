package buyer

import (
	"github.com/sharenet/packetpool/internal/buyer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("buyer.service",
	fx.Provide(service.NewService),
)
