package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WorkflowConfig drives the lazily created default approval flow and the
// currency conversion client. It is hot-reloadable so operators can change
// the default step chain without restarting the service; flows already
// materialized keep the steps they were created with.
type WorkflowConfig struct {
	DefaultSteps []DefaultStep `mapstructure:"defaultSteps"`
	Currency     CurrencyAPI   `mapstructure:"currency"`
}

type DefaultStep struct {
	Order        int    `mapstructure:"order"`
	ApproverType string `mapstructure:"approverType"`
}

type CurrencyAPI struct {
	BaseURL        string        `mapstructure:"baseUrl"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DefaultSteps: []DefaultStep{
			{Order: 1, ApproverType: "manager"},
			{Order: 2, ApproverType: "admin"},
		},
		Currency: CurrencyAPI{
			BaseURL:        "https://api.exchangerate-api.com/v4/latest",
			RequestTimeout: 5 * time.Second,
		},
	}
}

type WorkflowConfigHolder struct {
	current atomic.Value // holds WorkflowConfig
}

func NewWorkflowConfigHolder() (*WorkflowConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("workflow")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/expenseflow/config") // Volume-mounted config
	v.AddConfigPath("/etc/expenseflow")            // System config
	v.AddConfigPath(".")                           // Current directory (dev mode)

	v.SetEnvPrefix("EXPENSEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultWorkflowConfig()
		v.SetDefault("workflow.defaultSteps", defaults.DefaultSteps)
		v.SetDefault("workflow.currency", defaults.Currency)
	}

	var cfg WorkflowConfig
	if err := v.UnmarshalKey("workflow", &cfg); err != nil {
		return nil, err
	}
	cfg = applyWorkflowDefaults(cfg)
	if err := validateWorkflowConfig(cfg); err != nil {
		return nil, err
	}

	holder := &WorkflowConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WorkflowConfig
		if err := v.UnmarshalKey("workflow", &updated); err != nil {
			log.Printf("[workflow-config] reload failed: %v", err)
			return
		}
		updated = applyWorkflowDefaults(updated)
		if err := validateWorkflowConfig(updated); err != nil {
			log.Printf("[workflow-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[workflow-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *WorkflowConfigHolder) Get() WorkflowConfig {
	return h.current.Load().(WorkflowConfig)
}

// NewStaticWorkflowConfigHolder wraps a fixed config, used in tests.
func NewStaticWorkflowConfigHolder(cfg WorkflowConfig) *WorkflowConfigHolder {
	holder := &WorkflowConfigHolder{}
	holder.current.Store(applyWorkflowDefaults(cfg))
	return holder
}

func applyWorkflowDefaults(cfg WorkflowConfig) WorkflowConfig {
	defaults := DefaultWorkflowConfig()
	if len(cfg.DefaultSteps) == 0 {
		cfg.DefaultSteps = defaults.DefaultSteps
	}
	if cfg.Currency.BaseURL == "" {
		cfg.Currency.BaseURL = defaults.Currency.BaseURL
	}
	if cfg.Currency.RequestTimeout <= 0 {
		cfg.Currency.RequestTimeout = defaults.Currency.RequestTimeout
	}
	return cfg
}

func validateWorkflowConfig(cfg WorkflowConfig) error {
	if len(cfg.DefaultSteps) == 0 {
		return errors.New("workflow.defaultSteps cannot be empty")
	}
	seen := make(map[int]bool, len(cfg.DefaultSteps))
	for _, step := range cfg.DefaultSteps {
		if step.Order <= 0 {
			return errors.New("workflow.defaultSteps order must be positive")
		}
		if seen[step.Order] {
			return errors.New("workflow.defaultSteps orders must be unique")
		}
		seen[step.Order] = true
	}
	return nil
}
