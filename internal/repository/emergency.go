package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/service"
)

const emergencyChangesChannel = "emergency_changes"

const emergencyColumns = `id, requester_id, category, type, location, description, status, responder_id, created_at, updated_at`

type EmergencyRepository struct {
	db          DB
	redisClient *redis.Client
}

func NewEmergencyRepository(db DB, redisClient *redis.Client) service.EmergencyRepository {
	return &EmergencyRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись заявки в бд
func (r *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	query := `
		INSERT INTO emergencies (requester_id, category, type, location, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		emergency.RequesterID,
		emergency.Category,
		emergency.Type,
		emergency.Location,
		emergency.Description,
		emergency.Status,
	).Scan(&emergency.ID, &emergency.CreatedAt, &emergency.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create emergency: %w", translateStoreError(err))
	}

	r.publishChange(ctx, emergency)
	return nil
}

// GetByID возвращает заявку по ее UUID
func (r *EmergencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM emergencies WHERE id = $1;`
	emergency := &models.Emergency{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&emergency.ID,
		&emergency.RequesterID,
		&emergency.Category,
		&emergency.Type,
		&emergency.Location,
		&emergency.Description,
		&emergency.Status,
		&emergency.ResponderID,
		&emergency.CreatedAt,
		&emergency.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("emergency %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get emergency by id: %w", translateStoreError(err))
	}
	return emergency, nil
}

// ListPending возвращает незакрепленные ожидающие заявки категории
// в порядке поступления
func (r *EmergencyRepository) ListPending(ctx context.Context, category string) ([]*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE status = 'pending' AND responder_id IS NULL AND category = $1
		ORDER BY created_at ASC;
	`
	return r.queryEmergencies(ctx, query, category)
}

// ListAcceptedByResponder возвращает заявки, принятые респондером
func (r *EmergencyRepository) ListAcceptedByResponder(ctx context.Context, responderID uuid.UUID) ([]*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE status = 'accepted' AND responder_id = $1
		ORDER BY created_at ASC;
	`
	return r.queryEmergencies(ctx, query, responderID)
}

// Decline переводит заявку pending -> declined под блокировкой строки.
// Отклонять заявки могут только аккаунты с ролью респондера.
func (r *EmergencyRepository) Decline(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error) {
	return r.transition(ctx, emergencyID, models.StatusDeclined, nil, &responderID)
}

// Cancel отменяет заявку: только пока pending и только ее автором
func (r *EmergencyRepository) Cancel(ctx context.Context, emergencyID, requesterID uuid.UUID) (*models.Emergency, error) {
	return r.transition(ctx, emergencyID, models.StatusCancelled, &requesterID, nil)
}

// transition - общий переход pending -> терминальный статус.
// expectedRequester != nil дополнительно требует совпадения автора заявки,
// requiredResponder != nil - чтобы вызывающий был респондером.
func (r *EmergencyRepository) transition(ctx context.Context, emergencyID uuid.UUID, to string, expectedRequester, requiredResponder *uuid.UUID) (*models.Emergency, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition transaction: %w", translateStoreError(err))
	}
	defer tx.Rollback(ctx)

	if requiredResponder != nil {
		var role string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1;`, *requiredResponder).Scan(&role)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("responder %s: %w", *requiredResponder, models.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to read responder role: %w", translateStoreError(err))
		}
		if role != models.RoleHospital && role != models.RoleMechanic {
			return nil, fmt.Errorf("account %s cannot decline emergencies: %w", *requiredResponder, models.ErrForbidden)
		}
	}

	emergency, err := lockEmergency(ctx, tx, emergencyID)
	if err != nil {
		return nil, err
	}

	if expectedRequester != nil && emergency.RequesterID != *expectedRequester {
		return nil, fmt.Errorf("emergency %s belongs to another requester: %w", emergencyID, models.ErrForbidden)
	}
	if emergency.Status != models.StatusPending {
		return nil, fmt.Errorf("emergency %s is %s: %w", emergencyID, emergency.Status, models.ErrInvalidTransition)
	}

	err = tx.QueryRow(ctx,
		`UPDATE emergencies SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at;`,
		to, emergencyID,
	).Scan(&emergency.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to transition emergency to %s: %w", to, translateStoreError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition transaction: %w", translateStoreError(err))
	}

	emergency.Status = to
	r.publishChange(ctx, emergency)
	return emergency, nil
}

// Accept - транзакция принятия заявки. Блокирует строку респондера и строку
// заявки (всегда в этом порядке), перечитывает их состояние и одним коммитом
// закрепляет заявку за респондером со списанием обоих счетчиков.
// Частичного результата не бывает: либо все записи, либо ни одной.
func (r *EmergencyRepository) Accept(ctx context.Context, responderID, emergencyID uuid.UUID) (*models.Emergency, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin accept transaction: %w", translateStoreError(err))
	}
	defer tx.Rollback(ctx)

	var role string
	var units, vehicles int
	err = tx.QueryRow(ctx,
		`SELECT role, available_units, available_vehicles FROM users WHERE id = $1 FOR UPDATE;`,
		responderID,
	).Scan(&role, &units, &vehicles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("responder %s: %w", responderID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock responder row: %w", translateStoreError(err))
	}
	if role != models.RoleHospital && role != models.RoleMechanic {
		return nil, fmt.Errorf("account %s cannot accept emergencies: %w", responderID, models.ErrForbidden)
	}

	emergency, err := lockEmergency(ctx, tx, emergencyID)
	if err != nil {
		return nil, err
	}

	// Заявку мог забрать другой респондер, либо ее отклонили/отменили
	if emergency.Status != models.StatusPending || emergency.ResponderID != nil {
		return nil, fmt.Errorf("emergency %s is %s: %w", emergencyID, emergency.Status, models.ErrAlreadyHandled)
	}

	// Принятие требует единицы каждого ресурса
	if units <= 0 || vehicles <= 0 {
		return nil, models.NewInsufficientResourcesError(units, vehicles)
	}

	err = tx.QueryRow(ctx,
		`UPDATE emergencies SET status = 'accepted', responder_id = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at;`,
		responderID, emergencyID,
	).Scan(&emergency.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to bind emergency to responder: %w", translateStoreError(err))
	}

	_, err = tx.Exec(ctx,
		`UPDATE users
			SET available_units = available_units - 1,
				available_vehicles = available_vehicles - 1,
				updated_at = NOW()
			WHERE id = $1;`,
		responderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement responder capacity: %w", translateStoreError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit accept transaction: %w", translateStoreError(err))
	}

	emergency.Status = models.StatusAccepted
	emergency.ResponderID = &responderID
	r.publishChange(ctx, emergency)
	return emergency, nil
}

// SubscribeChanges - подписка на события изменения заявок через Redis pub/sub.
// cancel идемпотентен; после него канал закрывается.
func (r *EmergencyRepository) SubscribeChanges(ctx context.Context) (<-chan models.EmergencyChange, func(), error) {
	pubsub := r.redisClient.Subscribe(ctx, emergencyChangesChannel)
	// Убеждаемся, что подписка установлена, прежде чем отдавать канал
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to emergency changes: %w: %w", err, models.ErrStoreUnavailable)
	}

	out := make(chan models.EmergencyChange, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var change models.EmergencyChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

// GetStats возвращает количество заявок по статусам за временное окно
func (r *EmergencyRepository) GetStats(ctx context.Context, minutes int) (*models.EmergencyStats, error) {
	query := `
		SELECT status, COUNT(*)
		FROM emergencies
		WHERE created_at >= NOW() - ($1 * INTERVAL '1 minute')
		GROUP BY status;
	`
	rows, err := r.db.Query(ctx, query, minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to get emergency stats: %w", translateStoreError(err))
	}
	defer rows.Close()

	stats := &models.EmergencyStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		switch status {
		case models.StatusPending:
			stats.Pending = count
		case models.StatusAccepted:
			stats.Accepted = count
		case models.StatusDeclined:
			stats.Declined = count
		case models.StatusCancelled:
			stats.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error stats iteration: %w", err)
	}
	return stats, nil
}

// publishChange уведомляет подписчиков об изменении заявки.
// Доставка best-effort: ошибка публикации не должна валить мутацию,
// подписчик в любой момент может перечитать свежий снимок.
func (r *EmergencyRepository) publishChange(ctx context.Context, emergency *models.Emergency) {
	change := models.EmergencyChange{
		EmergencyID: emergency.ID,
		Category:    emergency.Category,
		Status:      emergency.Status,
		ResponderID: emergency.ResponderID,
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	_ = r.redisClient.Publish(ctx, emergencyChangesChannel, payload).Err()
}

// lockEmergency перечитывает заявку внутри транзакции с блокировкой строки
func lockEmergency(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Emergency, error) {
	emergency := &models.Emergency{}
	err := tx.QueryRow(ctx,
		`SELECT `+emergencyColumns+` FROM emergencies WHERE id = $1 FOR UPDATE;`,
		id,
	).Scan(
		&emergency.ID,
		&emergency.RequesterID,
		&emergency.Category,
		&emergency.Type,
		&emergency.Location,
		&emergency.Description,
		&emergency.Status,
		&emergency.ResponderID,
		&emergency.CreatedAt,
		&emergency.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("emergency %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock emergency row: %w", translateStoreError(err))
	}
	return emergency, nil
}

func (r *EmergencyRepository) queryEmergencies(ctx context.Context, query string, args ...any) ([]*models.Emergency, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list emergencies: %w", translateStoreError(err))
	}
	defer rows.Close()

	emergencies := make([]*models.Emergency, 0)
	for rows.Next() {
		emergency := &models.Emergency{}
		err := rows.Scan(
			&emergency.ID,
			&emergency.RequesterID,
			&emergency.Category,
			&emergency.Type,
			&emergency.Location,
			&emergency.Description,
			&emergency.Status,
			&emergency.ResponderID,
			&emergency.CreatedAt,
			&emergency.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emergency row: %w", err)
		}
		emergencies = append(emergencies, emergency)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error emergencies iteration: %w", err)
	}
	return emergencies, nil
}
