package data

import (
	"github.com/groupguard/feishu-guard/feishu"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/conf"
)

// Repositories contains all repositories
type Repositories struct {
	Transport  repo.TransportRepo
	Completion repo.CompletionRepo
	Audit      repo.AuditRepo
}

// NewRepositories creates all repositories from the configured clients.
// Completion is nil when no provider key is configured.
func NewRepositories(feishuClient *feishu.Client, cfg *conf.Config) (*Repositories, error) {
	auditRepo, err := NewAuditRepo(cfg.Audit.DBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Transport:  NewTransportRepo(feishuClient),
		Completion: NewCompletionRepo(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model),
		Audit:      auditRepo,
	}, nil
}
