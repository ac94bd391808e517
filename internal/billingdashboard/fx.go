package billingdashboard

import (
	"github.com/smallbiznis/clientdesk/internal/billingdashboard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingdashboard.service",
	fx.Provide(service.NewService),
)
