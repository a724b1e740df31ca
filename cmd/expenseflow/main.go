package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval"
	"github.com/smallbiznis/expenseflow/internal/audit"
	"github.com/smallbiznis/expenseflow/internal/auth"
	"github.com/smallbiznis/expenseflow/internal/category"
	"github.com/smallbiznis/expenseflow/internal/clock"
	"github.com/smallbiznis/expenseflow/internal/company"
	"github.com/smallbiznis/expenseflow/internal/config"
	"github.com/smallbiznis/expenseflow/internal/currency"
	"github.com/smallbiznis/expenseflow/internal/expense"
	"github.com/smallbiznis/expenseflow/internal/metrics"
	"github.com/smallbiznis/expenseflow/internal/migration"
	"github.com/smallbiznis/expenseflow/internal/ratelimit"
	"github.com/smallbiznis/expenseflow/internal/scheduler"
	"github.com/smallbiznis/expenseflow/internal/server"
	"github.com/smallbiznis/expenseflow/internal/storage"
	"github.com/smallbiznis/expenseflow/internal/user"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"github.com/smallbiznis/expenseflow/pkg/log"
	"github.com/smallbiznis/expenseflow/pkg/redis"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(config.NewWorkflowConfigHolder),
		db.Module,
		redis.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		audit.Module,
		auth.Module,
		company.Module,
		user.Module,
		category.Module,
		approval.Module,
		currency.Module,
		expense.Module,
		ratelimit.Module,
		storage.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
