package approval

import (
	"github.com/smallbiznis/expenseflow/internal/approval/repository"
	"github.com/smallbiznis/expenseflow/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewApproverResolver),
	fx.Provide(service.NewLedger),
)
