package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	auditdomain "github.com/smallbiznis/expenseflow/internal/audit/domain"
	authdomain "github.com/smallbiznis/expenseflow/internal/auth/domain"
	categorydomain "github.com/smallbiznis/expenseflow/internal/category/domain"
	companydomain "github.com/smallbiznis/expenseflow/internal/company/domain"
	"github.com/smallbiznis/expenseflow/internal/config"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
	"github.com/smallbiznis/expenseflow/internal/ratelimit"
	"github.com/smallbiznis/expenseflow/internal/storage"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	authSvc     authdomain.Service
	userSvc     userdomain.Service
	companySvc  companydomain.Service
	categorySvc categorydomain.Service
	approvalSvc approvaldomain.Service
	expenseSvc  expensedomain.Service
	auditSvc    auditdomain.Service
	receipts    storage.ReceiptStore
	loginLimit  *ratelimit.LoginLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	AuthSvc     authdomain.Service
	UserSvc     userdomain.Service
	CompanySvc  companydomain.Service
	CategorySvc categorydomain.Service
	ApprovalSvc approvaldomain.Service
	ExpenseSvc  expensedomain.Service
	AuditSvc    auditdomain.Service
	Receipts    storage.ReceiptStore    `optional:"true"`
	LoginLimit  *ratelimit.LoginLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		authSvc:     p.AuthSvc,
		userSvc:     p.UserSvc,
		companySvc:  p.CompanySvc,
		categorySvc: p.CategorySvc,
		approvalSvc: p.ApprovalSvc,
		expenseSvc:  p.ExpenseSvc,
		auditSvc:    p.AuditSvc,
		receipts:    p.Receipts,
		loginLimit:  p.LoginLimit,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.LoginRateLimited(), s.Signup)
	auth.POST("/login", s.LoginRateLimited(), s.Login)
	auth.POST("/logout", s.AuthRequired(), s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	api.GET("/company", s.GetCompany)

	api.POST("/users", s.RequireRole(userdomain.RoleAdmin), s.CreateUser)
	api.GET("/users", s.ListUsers)
	api.PATCH("/users/:id", s.RequireRole(userdomain.RoleAdmin), s.UpdateUser)
	api.POST("/users/manager", s.RequireRole(userdomain.RoleAdmin), s.AssignManager)
	api.DELETE("/users/manager", s.RequireRole(userdomain.RoleAdmin), s.RemoveManager)

	api.GET("/categories", s.ListCategories)
	api.POST("/categories", s.RequireRole(userdomain.RoleAdmin), s.CreateCategory)

	api.POST("/approval-rules", s.RequireRole(userdomain.RoleAdmin), s.CreateApprovalRule)
	api.GET("/approval-rules", s.ListApprovalRules)
	api.POST("/approval-flows", s.RequireRole(userdomain.RoleAdmin), s.CreateApprovalFlow)
	api.GET("/approval-flows", s.ListApprovalFlows)

	api.POST("/expenses", s.CreateExpense)
	api.GET("/expenses", s.ListMyExpenses)
	api.GET("/expenses/all", s.ListCompanyExpenses)
	api.GET("/expenses/team", s.ListTeamExpenses)
	api.GET("/expenses/pending", s.ListPendingApprovals)
	api.GET("/expenses/stats", s.ExpenseStats)
	api.GET("/expenses/:id", s.GetExpense)
	api.POST("/expenses/:id/submit", s.SubmitExpense)
	api.POST("/expenses/:id/decision", s.DecideExpense)

	api.POST("/receipts", s.UploadReceipt)
	api.GET("/receipts/url", s.ReceiptURL)

	api.GET("/audit-logs", s.RequireRole(userdomain.RoleAdmin), s.ListAuditLogs)
}
