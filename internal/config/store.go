package config

import (
	"sync"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

// Store holds the active configuration and hands out copies, with secrets
// masked for anything that leaves the process.
type Store struct {
	mu     sync.RWMutex
	config *domain.AppConfig
}

func NewStore(cfg *domain.AppConfig) *Store {
	return &Store{config: cfg}
}

// GetConfig returns a copy of the current config with secrets intact.
func (s *Store) GetConfig() *domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := *s.config
	cp.Server.CORSOrigins = append([]string(nil), s.config.Server.CORSOrigins...)
	return &cp
}

// GetMaskedConfig returns config safe for logs and API responses.
func (s *Store) GetMaskedConfig() *domain.AppConfig {
	cp := s.GetConfig()
	cp.LLM.APIKey = MaskSecret(cp.LLM.APIKey)
	return cp
}

// MaskSecret returns a masked version safe for display: "****abcd"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
