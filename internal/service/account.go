package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// UserRepository определяет контракт для работы с бд аккаунтов
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SearchResponders(ctx context.Context, role, city string) ([]*models.User, error)
	AdjustCapacity(ctx context.Context, responderID uuid.UUID, counter string, delta int) (int, error)
	GetUserFromCache(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetUserCache(ctx context.Context, user *models.User) error
	InvalidateUserCache(ctx context.Context, id uuid.UUID) error
}

// RegisterInput - данные регистрации нового аккаунта
type RegisterInput struct {
	Email   string
	Role    string
	Name    string
	Phone   string
	Address string
	License string
}

// AccountService определяет контракт для бизнес-логики управления аккаунтами
type AccountService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	SearchResponders(ctx context.Context, category, city string) ([]*models.User, error)
}

type accountService struct {
	repo   UserRepository
	logger *logrus.Logger
}

func NewAccountService(repo UserRepository, logger *logrus.Logger) AccountService {
	return &accountService{
		repo:   repo,
		logger: logger,
	}
}

// Register создает аккаунт. Респондеры стартуют с нулевыми счетчиками ресурсов.
func (s *accountService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "Register",
		"role":    input.Role,
	})
	log.Info("Attempting to register a new account")

	user := &models.User{
		Email:   input.Email,
		Role:    input.Role,
		Name:    input.Name,
		Phone:   input.Phone,
		Address: input.Address,
		City:    extractCity(input.Address),
		License: input.License,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		log.WithError(err).Error("Failed to create account in repository")
		return nil, fmt.Errorf("service: could not register account: %w", err)
	}

	log.WithField("user_id", user.ID).Info("Account registered successfully")
	return user, nil
}

// GetProfile получает аккаунт по ID, сначала пробуя кеш
func (s *accountService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "account",
		"method":  "GetProfile",
		"user_id": id,
	})

	cached, err := s.repo.GetUserFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read account from cache, falling back to DB")
	}
	if cached != nil {
		return cached, nil
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get account from repository")
		return nil, fmt.Errorf("service: could not get account: %w", err)
	}

	if err := s.repo.SetUserCache(ctx, user); err != nil {
		log.WithError(err).Warn("Failed to cache account")
	}
	return user, nil
}

// SearchResponders возвращает респондеров нужной категории в городе,
// отсортированных по доступным ресурсам
func (s *accountService) SearchResponders(ctx context.Context, category, city string) ([]*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "account",
		"method":   "SearchResponders",
		"category": category,
		"city":     city,
	})
	log.Info("Searching responders")

	role := models.ResponderRoleForCategory(category)
	responders, err := s.repo.SearchResponders(ctx, role, city)
	if err != nil {
		log.WithError(err).Error("Failed to search responders in repository")
		return nil, fmt.Errorf("service: could not search responders: %w", err)
	}

	log.WithField("count", len(responders)).Info("Responders search completed")
	return responders, nil
}

// extractCity достает город из адреса: последний сегмент после запятой
func extractCity(address string) string {
	parts := strings.Split(address, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}
