package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// EmergencyRepository определяет контракт для работы с бд заявок
type EmergencyRepository interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error)
	ListPending(ctx context.Context, category string) ([]*models.Emergency, error)
	ListAcceptedByResponder(ctx context.Context, responderID uuid.UUID) ([]*models.Emergency, error)
	Decline(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error)
	Cancel(ctx context.Context, emergencyID, requesterID uuid.UUID) (*models.Emergency, error)
	Accept(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error)
	SubscribeChanges(ctx context.Context) (<-chan models.EmergencyChange, func(), error)
	GetStats(ctx context.Context, minutes int) (*models.EmergencyStats, error)
}

// CreateEmergencyInput - данные новой заявки от заявителя
type CreateEmergencyInput struct {
	Category    string
	Type        string
	Location    string
	Description string
}

// EmergencyService определяет контракт для жизненного цикла заявок
// вне транзакции принятия (ее ведет AcceptanceService)
type EmergencyService interface {
	Create(ctx context.Context, requesterID uuid.UUID, input CreateEmergencyInput) (*models.Emergency, error)
	Decline(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error)
	Cancel(ctx context.Context, requesterID, emergencyID uuid.UUID) (*models.Emergency, error)
	ListPending(ctx context.Context, category string) ([]*models.Emergency, error)
	ListAccepted(ctx context.Context, responderID uuid.UUID) ([]*models.Emergency, error)
	SubscribePending(ctx context.Context, category string) (<-chan []*models.Emergency, func(), error)
	SubscribeAccepted(ctx context.Context, responderID uuid.UUID) (<-chan []*models.Emergency, func(), error)
	GetStats(ctx context.Context) (*models.EmergencyStats, error)
}

type emergencyService struct {
	repo             EmergencyRepository
	logger           *logrus.Logger
	cfg              *config.Config
	webhookPublisher webhook.WebhookPublisher
}

func NewEmergencyService(repo EmergencyRepository, logger *logrus.Logger, cfg *config.Config, publisher webhook.WebhookPublisher) EmergencyService {
	return &emergencyService{
		repo:             repo,
		logger:           logger,
		cfg:              cfg,
		webhookPublisher: publisher,
	}
}

// Create регистрирует новую заявку со статусом pending и без респондера
func (s *emergencyService) Create(ctx context.Context, requesterID uuid.UUID, input CreateEmergencyInput) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "Create",
		"requester_id": requesterID,
		"category":     input.Category,
	})
	log.Info("Attempting to create a new emergency")

	emergency := &models.Emergency{
		RequesterID: requesterID,
		Category:    input.Category,
		Type:        input.Type,
		Location:    input.Location,
		Description: input.Description,
		Status:      models.StatusPending,
	}

	if err := s.repo.Create(ctx, emergency); err != nil {
		log.WithError(err).Error("Failed to create emergency in repository")
		return nil, fmt.Errorf("service: could not create emergency: %w", err)
	}

	s.publishWebhook(ctx, "emergency.created", emergency)

	log.WithField("emergency_id", emergency.ID).Info("Emergency created successfully")
	return emergency, nil
}

// Decline переводит заявку pending -> declined. Доступно только респондерам.
func (s *emergencyService) Decline(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "Decline",
		"responder_id": responderID,
		"emergency_id": emergencyID,
	})
	log.Info("Attempting to decline emergency")

	emergency, err := s.repo.Decline(ctx, responderID, emergencyID)
	if err != nil {
		log.WithError(err).Warn("Failed to decline emergency")
		return nil, fmt.Errorf("service: could not decline emergency: %w", err)
	}

	s.publishWebhook(ctx, "emergency.declined", emergency)

	log.Info("Emergency declined successfully")
	return emergency, nil
}

// Cancel отменяет заявку. Разрешено только автору и только пока она pending.
func (s *emergencyService) Cancel(ctx context.Context, requesterID, emergencyID uuid.UUID) (*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "Cancel",
		"requester_id": requesterID,
		"emergency_id": emergencyID,
	})
	log.Info("Attempting to cancel emergency")

	emergency, err := s.repo.Cancel(ctx, emergencyID, requesterID)
	if err != nil {
		log.WithError(err).Warn("Failed to cancel emergency")
		return nil, fmt.Errorf("service: could not cancel emergency: %w", err)
	}

	s.publishWebhook(ctx, "emergency.cancelled", emergency)

	log.Info("Emergency cancelled successfully")
	return emergency, nil
}

// ListPending возвращает снимок ожидающих заявок категории в порядке поступления
func (s *emergencyService) ListPending(ctx context.Context, category string) ([]*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "emergency",
		"method":   "ListPending",
		"category": category,
	})

	emergencies, err := s.repo.ListPending(ctx, category)
	if err != nil {
		log.WithError(err).Error("Failed to list pending emergencies from repository")
		return nil, fmt.Errorf("service: could not list pending emergencies: %w", err)
	}
	return emergencies, nil
}

// ListAccepted возвращает заявки, закрепленные за респондером
func (s *emergencyService) ListAccepted(ctx context.Context, responderID uuid.UUID) ([]*models.Emergency, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "emergency",
		"method":       "ListAccepted",
		"responder_id": responderID,
	})

	emergencies, err := s.repo.ListAcceptedByResponder(ctx, responderID)
	if err != nil {
		log.WithError(err).Error("Failed to list accepted emergencies from repository")
		return nil, fmt.Errorf("service: could not list accepted emergencies: %w", err)
	}
	return emergencies, nil
}

// SubscribePending - живая подписка на ожидающие заявки категории.
// Подписчик получает свежий снимок сразу и далее при каждом изменении
// подходящей заявки. cancel идемпотентен.
func (s *emergencyService) SubscribePending(ctx context.Context, category string) (<-chan []*models.Emergency, func(), error) {
	return s.subscribe(ctx, "SubscribePending",
		func(ctx context.Context) ([]*models.Emergency, error) {
			return s.repo.ListPending(ctx, category)
		},
		func(change models.EmergencyChange) bool {
			return change.Category == category
		},
	)
}

// SubscribeAccepted - живая подписка на заявки, принятые респондером
func (s *emergencyService) SubscribeAccepted(ctx context.Context, responderID uuid.UUID) (<-chan []*models.Emergency, func(), error) {
	return s.subscribe(ctx, "SubscribeAccepted",
		func(ctx context.Context) ([]*models.Emergency, error) {
			return s.repo.ListAcceptedByResponder(ctx, responderID)
		},
		func(change models.EmergencyChange) bool {
			return change.ResponderID != nil && *change.ResponderID == responderID
		},
	)
}

// subscribe - общий механизм живых подписок: снимок при подписке,
// новый снимок на каждое подходящее событие изменения
func (s *emergencyService) subscribe(
	ctx context.Context,
	method string,
	snapshot func(ctx context.Context) ([]*models.Emergency, error),
	matches func(change models.EmergencyChange) bool,
) (<-chan []*models.Emergency, func(), error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "emergency",
		"method":  method,
	})

	changes, cancelChanges, err := s.repo.SubscribeChanges(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to emergency changes")
		return nil, nil, fmt.Errorf("service: could not subscribe: %w", err)
	}

	out := make(chan []*models.Emergency, 1)

	initial, err := snapshot(ctx)
	if err != nil {
		cancelChanges()
		log.WithError(err).Error("Failed to load initial snapshot")
		return nil, nil, fmt.Errorf("service: could not load snapshot: %w", err)
	}
	out <- initial

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				if !matches(change) {
					continue
				}
				snap, err := snapshot(ctx)
				if err != nil {
					log.WithError(err).Warn("Failed to refresh subscription snapshot")
					continue
				}
				// Медленный подписчик получает только последний снимок
				select {
				case out <- snap:
				default:
					select {
					case <-out:
					default:
					}
					select {
					case out <- snap:
					default:
					}
				}
			}
		}
	}()

	log.Info("Subscription established")
	return out, cancelChanges, nil
}

// GetStats возвращает количество заявок по статусам за настроенное окно
func (s *emergencyService) GetStats(ctx context.Context) (*models.EmergencyStats, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "emergency",
		"method":  "GetStats",
	})

	stats, err := s.repo.GetStats(ctx, s.cfg.StatsTimeWindowMinutes)
	if err != nil {
		log.WithError(err).Error("Failed to get emergency stats from repository")
		return nil, fmt.Errorf("service: could not get stats: %w", err)
	}
	return stats, nil
}

// publishWebhook отправляет событие жизненного цикла заявки в очередь вебхуков.
// Ошибка доставки не валит основную операцию.
func (s *emergencyService) publishWebhook(ctx context.Context, eventType string, emergency *models.Emergency) {
	event := webhook.WebhookEvent{
		EventType:   eventType,
		EmergencyID: emergency.ID,
		RequesterID: emergency.RequesterID,
		ResponderID: emergency.ResponderID,
		Category:    emergency.Category,
		Status:      emergency.Status,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.webhookPublisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Warn("Failed to publish webhook event")
	}
}
