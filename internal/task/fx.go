package task

import (
	"github.com/smallbiznis/clientdesk/internal/task/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("task.repository",
	fx.Provide(repository.Provide),
)
