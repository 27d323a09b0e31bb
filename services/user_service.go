package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/repository"

	"go.uber.org/zap"
)

// UserService serves buyer profile concerns, currently the email
// notification preferences behind the confirmation opt-out.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

func (s *UserService) GetPreferences(ctx context.Context, email string) (*models.EmailPreferences, *ServiceError) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(http.StatusNotFound, "user not found")
		}
		s.logger.Error("user lookup failed", zap.String("email", email), zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "user lookup failed")
	}
	return &user.EmailPreferences, nil
}

// UpdatePreferences merges the submitted flags into the stored preferences.
// Unknown flag names are rejected by the repository whitelist.
func (s *UserService) UpdatePreferences(ctx context.Context, email string, prefs map[string]bool) (*models.EmailPreferences, *ServiceError) {
	if len(prefs) == 0 {
		return nil, NewServiceError(http.StatusBadRequest, "no preferences provided")
	}

	user, err := s.users.UpdatePreferences(ctx, email, prefs)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewServiceError(http.StatusNotFound, "user not found")
		}
		if errors.Is(err, repository.ErrInvalidPreference) {
			return nil, NewServiceError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("preference update failed", zap.String("email", email), zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "preference update failed")
	}

	s.logger.Info("email preferences updated", zap.String("email", email))
	return &user.EmailPreferences, nil
}
