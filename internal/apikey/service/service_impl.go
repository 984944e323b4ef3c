package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"

	apikeydomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/auth/password"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const apiKeySecretBytes = 32

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type Service struct {
	log       *zap.Logger
	operators []config.OperatorKey

	// sha256(raw key) -> operator, filled after a successful argon2id verify
	verified sync.Map
}

func New(p Params) apikeydomain.Authenticator {
	return &Service{
		log:       p.Log.Named("apikey.service"),
		operators: p.Config.Operators,
	}
}

func (s *Service) Authenticate(ctx context.Context, rawKey string) (*apikeydomain.Operator, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, apikeydomain.ErrMissingKey
	}
	if !strings.HasPrefix(rawKey, apikeydomain.KeyPrefix) {
		return nil, apikeydomain.ErrInvalidKey
	}

	digest := apikeydomain.HashAPIKey(rawKey)
	if cached, ok := s.verified.Load(digest); ok {
		op := cached.(apikeydomain.Operator)
		return &op, nil
	}

	for _, candidate := range s.operators {
		if !password.Verify(rawKey, candidate.Hash) {
			continue
		}
		op := apikeydomain.Operator{Name: candidate.Name, Role: candidate.Role}
		s.verified.Store(digest, op)
		return &op, nil
	}
	s.log.Warn("operator key rejected", zap.String("key_digest", digest[:12]))
	return nil, apikeydomain.ErrInvalidKey
}

// GenerateKey returns a new raw operator key and its argon2id hash for configuration.
func GenerateKey() (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	plain := apikeydomain.KeyPrefix + hex.EncodeToString(secret)
	hash, err := password.Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}
