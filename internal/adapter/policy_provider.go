package adapter

import (
	"context"

	"lms-assessment/internal/config"
	"lms-assessment/internal/domain"
)

// ConfigPolicyProvider serves the gating policy from static configuration.
type ConfigPolicyProvider struct {
	policy domain.GatingPolicy
}

func NewConfigPolicyProvider(cfg config.GatingConfig) *ConfigPolicyProvider {
	return &ConfigPolicyProvider{
		policy: domain.NewGatingPolicy(cfg.LLNDExcludedCategories, cfg.PTRExcludedCategories, cfg.SecondaryTermMarkers),
	}
}

func (p *ConfigPolicyProvider) GatingPolicy(context.Context) (domain.GatingPolicy, error) {
	return p.policy, nil
}
