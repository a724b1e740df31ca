package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/smallbiznis/expenseflow/internal/approval/repository"
	"github.com/smallbiznis/expenseflow/internal/config"
	"github.com/smallbiznis/expenseflow/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openResolverDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func newResolver(t *testing.T, db *gorm.DB, cfg config.WorkflowConfig) (*Resolver, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	r := NewResolver(ResolverParams{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		WFConf: config.NewStaticWorkflowConfigHolder(cfg),
	})
	return r, node
}

func TestResolveCreatesDefaultRuleAndFlow(t *testing.T) {
	db := openResolverDB(t, "resolver_default")
	r, node := newResolver(t, db, config.WorkflowConfig{})

	companyID := node.Generate()
	resolved, err := r.Resolve(context.Background(), companyID)
	require.NoError(t, err)

	assert.Equal(t, "Default Sequential", resolved.Rule.Name)
	assert.Equal(t, domain.RuleSequential, resolved.Rule.RuleType)
	assert.True(t, resolved.Rule.IsActive)
	assert.Equal(t, companyID, resolved.Rule.CompanyID)

	assert.Equal(t, "Default Flow", resolved.Flow.Name)
	assert.Equal(t, resolved.Rule.ID, resolved.Flow.RuleID)
	assert.True(t, resolved.Flow.IsDefault)

	require.Len(t, resolved.Steps, 2)
	assert.Equal(t, 1, resolved.Steps[0].StepOrder)
	assert.Equal(t, domain.ApproverManager, resolved.Steps[0].ApproverType)
	assert.Equal(t, 2, resolved.Steps[1].StepOrder)
	assert.Equal(t, domain.ApproverAdmin, resolved.Steps[1].ApproverType)
}

func TestResolveIsIdempotent(t *testing.T) {
	db := openResolverDB(t, "resolver_idempotent")
	r, node := newResolver(t, db, config.WorkflowConfig{})

	companyID := node.Generate()
	first, err := r.Resolve(context.Background(), companyID)
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), companyID)
	require.NoError(t, err)

	assert.Equal(t, first.Rule.ID, second.Rule.ID)
	assert.Equal(t, first.Flow.ID, second.Flow.ID)
	assert.Len(t, second.Steps, len(first.Steps))

	var ruleCount, flowCount int64
	db.Model(&domain.ApprovalRule{}).Where("company_id = ?", companyID).Count(&ruleCount)
	db.Model(&domain.ApprovalFlow{}).Where("company_id = ?", companyID).Count(&flowCount)
	assert.Equal(t, int64(1), ruleCount)
	assert.Equal(t, int64(1), flowCount)
}

func TestResolvePrefersExistingActiveRule(t *testing.T) {
	db := openResolverDB(t, "resolver_existing")
	r, node := newResolver(t, db, config.WorkflowConfig{})

	companyID := node.Generate()
	threshold := 60
	existing := &domain.ApprovalRule{
		ID:                  node.Generate(),
		CompanyID:           companyID,
		Name:                "Majority Vote",
		RuleType:            domain.RulePercentage,
		PercentageThreshold: &threshold,
		IsActive:            true,
	}
	require.NoError(t, db.Create(existing).Error)

	resolved, err := r.Resolve(context.Background(), companyID)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, resolved.Rule.ID)
	assert.Equal(t, domain.RulePercentage, resolved.Rule.RuleType)
	// The default flow hangs off whatever rule won, not a fresh one.
	assert.Equal(t, existing.ID, resolved.Flow.RuleID)
}

func TestResolveHonorsConfiguredSteps(t *testing.T) {
	db := openResolverDB(t, "resolver_configured")
	r, node := newResolver(t, db, config.WorkflowConfig{
		DefaultSteps: []config.DefaultStep{
			{Order: 1, ApproverType: string(domain.ApproverAdmin)},
		},
	})

	resolved, err := r.Resolve(context.Background(), node.Generate())
	require.NoError(t, err)

	require.Len(t, resolved.Steps, 1)
	assert.Equal(t, domain.ApproverAdmin, resolved.Steps[0].ApproverType)
}

func TestResolveSkipsUnknownConfiguredApproverType(t *testing.T) {
	db := openResolverDB(t, "resolver_unknown_type")
	r, node := newResolver(t, db, config.WorkflowConfig{
		DefaultSteps: []config.DefaultStep{
			{Order: 1, ApproverType: "intern"},
			{Order: 2, ApproverType: string(domain.ApproverManager)},
		},
	})

	resolved, err := r.Resolve(context.Background(), node.Generate())
	require.NoError(t, err)

	require.Len(t, resolved.Steps, 1)
	assert.Equal(t, domain.ApproverManager, resolved.Steps[0].ApproverType)
}
