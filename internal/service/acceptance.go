package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// AcceptanceService - координатор принятия заявки. Перевод pending -> accepted
// и списание обоих счетчиков респондера выполняются одной транзакцией хранилища:
// либо всё, либо ничего. Заявку принимает не более одного респондера.
type AcceptanceService interface {
	Accept(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error)
}

type acceptanceService struct {
	emergencies      EmergencyRepository
	users            UserRepository
	logger           *logrus.Logger
	cfg              *config.Config
	webhookPublisher webhook.WebhookPublisher
}

func NewAcceptanceService(emergencies EmergencyRepository, users UserRepository, logger *logrus.Logger, cfg *config.Config, publisher webhook.WebhookPublisher) AcceptanceService {
	return &acceptanceService{
		emergencies:      emergencies,
		users:            users,
		logger:           logger,
		cfg:              cfg,
		webhookPublisher: publisher,
	}
}

// Accept принимает заявку от имени респондера. При конфликте конкурентной
// транзакции операция повторяется с чистого чтения ограниченное число раз,
// после чего ErrConflict отдается вызывающему.
func (s *acceptanceService) Accept(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "acceptance",
		"method":       "Accept",
		"responder_id": responderID,
		"emergency_id": emergencyID,
	})
	log.Info("Attempting to accept emergency")

	var emergency *models.Emergency
	var err error
	attempts := s.cfg.AcceptMaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		emergency, err = s.emergencies.Accept(ctx, responderID, emergencyID)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConflict) {
			log.WithError(err).Warn("Failed to accept emergency")
			return nil, fmt.Errorf("service: could not accept emergency: %w", err)
		}
		log.WithField("attempt", attempt).Warn("Acceptance transaction conflict, retrying")
	}
	if err != nil {
		log.WithError(err).Error("Acceptance failed after retries")
		return nil, fmt.Errorf("service: acceptance failed after %d attempts: %w", attempts, err)
	}

	// Счетчики респондера изменились - кеш аккаунта устарел
	if cacheErr := s.users.InvalidateUserCache(ctx, responderID); cacheErr != nil {
		log.WithError(cacheErr).Warn("Failed to invalidate responder cache after accept")
	}

	s.publishAccepted(ctx, emergency)

	log.Info("Emergency accepted successfully")
	return emergency, nil
}

func (s *acceptanceService) publishAccepted(ctx context.Context, emergency *models.Emergency) {
	event := webhook.WebhookEvent{
		EventType:   "emergency.accepted",
		EmergencyID: emergency.ID,
		RequesterID: emergency.RequesterID,
		ResponderID: emergency.ResponderID,
		Category:    emergency.Category,
		Status:      emergency.Status,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.webhookPublisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish webhook event for acceptance")
	}
}
