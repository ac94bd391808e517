package obligation

import (
	"github.com/smallbiznis/clientdesk/internal/obligation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("obligation.service",
	fx.Provide(service.NewService),
)
