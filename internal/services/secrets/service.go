// -----------------------------------------------------------------------
// Secrets service - closed key set, masking, bulk presence checks
// -----------------------------------------------------------------------

package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrUnknownKey is returned for keys outside the closed set.
var ErrUnknownKey = fmt.Errorf("unknown secret key")

// Service provides business logic for credential material
type Service struct {
	storage interfaces.SecretStorage
	logger  arbor.ILogger
}

// NewService creates a new secrets service
func NewService(storage interfaces.SecretStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Get returns the stored value for a known key. Missing keys return
// interfaces.ErrKeyNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !models.IsSecretKey(key) {
		return "", ErrUnknownKey
	}
	return s.storage.Get(ctx, key)
}

// Set stores a value under a known key.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if !models.IsSecretKey(key) {
		return ErrUnknownKey
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("secret value cannot be empty")
	}

	if err := s.storage.Set(ctx, key, value); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store secret")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Secret stored")
	return nil
}

// Delete removes a stored secret. Deleting an absent key succeeds.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !models.IsSecretKey(key) {
		return ErrUnknownKey
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to delete secret")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Secret deleted")
	return nil
}

// Has reports whether a non-empty value is stored under key.
func (s *Service) Has(ctx context.Context, key string) (bool, error) {
	if !models.IsSecretKey(key) {
		return false, ErrUnknownKey
	}
	return s.storage.Has(ctx, key)
}

// Check reports presence for a batch of keys in one call. Unknown keys
// simply report false rather than failing the batch.
func (s *Service) Check(ctx context.Context, keys []string) (map[string]bool, error) {
	result := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !models.IsSecretKey(key) {
			result[key] = false
			continue
		}
		has, err := s.storage.Has(ctx, key)
		if err != nil {
			return nil, err
		}
		result[key] = has
	}
	return result, nil
}

// Mask renders a secret for display: the last four characters survive,
// everything else is replaced. Values of four characters or fewer are
// fully masked.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
