package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// LedgerService определяет контракт для управления счетчиками ресурсов респондера.
// Счетчики меняются только здесь и в AcceptanceService; прямые перезаписи запрещены.
type LedgerService interface {
	Adjust(ctx context.Context, responderID uuid.UUID, counter string, delta int) (int, error)
	GetCapacity(ctx context.Context, responderID uuid.UUID) (units int, vehicles int, err error)
}

type ledgerService struct {
	repo   UserRepository
	logger *logrus.Logger
}

func NewLedgerService(repo UserRepository, logger *logrus.Logger) LedgerService {
	return &ledgerService{
		repo:   repo,
		logger: logger,
	}
}

// Adjust атомарно изменяет счетчик ресурса. Уход ниже нуля запрещен:
// операция завершается ErrInvalidAdjustment и ничего не записывает.
func (s *ledgerService) Adjust(ctx context.Context, responderID uuid.UUID, counter string, delta int) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "ledger",
		"method":       "Adjust",
		"responder_id": responderID,
		"counter":      counter,
		"delta":        delta,
	})
	log.Info("Adjusting responder capacity")

	if counter != models.CounterUnits && counter != models.CounterVehicles {
		log.Warn("Unknown capacity counter")
		return 0, fmt.Errorf("service: unknown capacity counter %q: %w", counter, models.ErrInvalidAdjustment)
	}

	newValue, err := s.repo.AdjustCapacity(ctx, responderID, counter, delta)
	if err != nil {
		log.WithError(err).Error("Failed to adjust capacity in repository")
		return 0, fmt.Errorf("service: could not adjust capacity: %w", err)
	}

	// Кеш аккаунта больше не актуален
	if err := s.repo.InvalidateUserCache(ctx, responderID); err != nil {
		log.WithError(err).Warn("Failed to invalidate account cache after adjust")
	}

	log.WithField("new_value", newValue).Info("Capacity adjusted successfully")
	return newValue, nil
}

// GetCapacity возвращает текущие значения обоих счетчиков респондера
func (s *ledgerService) GetCapacity(ctx context.Context, responderID uuid.UUID) (int, int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "ledger",
		"method":       "GetCapacity",
		"responder_id": responderID,
	})

	user, err := s.repo.GetByID(ctx, responderID)
	if err != nil {
		log.WithError(err).Error("Failed to get responder from repository")
		return 0, 0, fmt.Errorf("service: could not get responder: %w", err)
	}

	if !user.IsResponder() {
		log.Warn("Account is not a responder")
		return 0, 0, fmt.Errorf("service: account %s holds no capacity: %w", responderID, models.ErrForbidden)
	}

	return user.AvailableUnits, user.AvailableVehicles, nil
}
