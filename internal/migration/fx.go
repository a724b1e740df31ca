package migration

import (
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	auditdomain "github.com/smallbiznis/expenseflow/internal/audit/domain"
	categorydomain "github.com/smallbiznis/expenseflow/internal/category/domain"
	companydomain "github.com/smallbiznis/expenseflow/internal/company/domain"
	"github.com/smallbiznis/expenseflow/internal/config"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"gorm.io/gorm"

	"go.uber.org/fx"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// Non-postgres dialects derive the schema from the models.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the full schema from the gorm models. Tests use it to
// bring up in-memory sqlite databases.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&companydomain.Company{},
		&userdomain.User{},
		&userdomain.ManagerEmployee{},
		&categorydomain.ExpenseCategory{},
		&approvaldomain.ApprovalRule{},
		&approvaldomain.ApprovalFlow{},
		&approvaldomain.ApprovalStep{},
		&expensedomain.Expense{},
		&approvaldomain.ExpenseApproval{},
		&auditdomain.AuditLog{},
	)
}
