package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/service"
)

type UserRepository struct {
	db          DB
	redisClient *redis.Client
}

func NewUserRepository(db DB, redisClient *redis.Client) service.UserRepository {
	return &UserRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новый аккаунт в бд. Счетчики ресурсов стартуют с нуля.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, role, name, phone, address, city, license)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, available_units, available_vehicles, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.Role,
		user.Name,
		user.Phone,
		user.Address,
		user.City,
		user.License,
	).Scan(&user.ID, &user.AvailableUnits, &user.AvailableVehicles, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", translateStoreError(err))
	}
	return nil
}

// GetByID возвращает аккаунт по его UUID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, role, name, phone, address, city, license,
			available_units, available_vehicles, created_at, updated_at
		FROM users
		WHERE id = $1;
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Role,
		&user.Name,
		&user.Phone,
		&user.Address,
		&user.City,
		&user.License,
		&user.AvailableUnits,
		&user.AvailableVehicles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", translateStoreError(err))
	}
	return user, nil
}

// SearchResponders находит респондеров роли в городе, отсортированных
// по убыванию доступных ресурсов
func (r *UserRepository) SearchResponders(ctx context.Context, role, city string) ([]*models.User, error) {
	query := `
		SELECT id, email, role, name, phone, address, city, license,
			available_units, available_vehicles, created_at, updated_at
		FROM users
		WHERE role = $1 AND city = $2
		ORDER BY available_units DESC, available_vehicles DESC;
	`
	rows, err := r.db.Query(ctx, query, role, city)
	if err != nil {
		return nil, fmt.Errorf("failed to search responders: %w", translateStoreError(err))
	}
	defer rows.Close()

	responders := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Role,
			&user.Name,
			&user.Phone,
			&user.Address,
			&user.City,
			&user.License,
			&user.AvailableUnits,
			&user.AvailableVehicles,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error responders iteration: %w", err)
	}
	return responders, nil
}

// AdjustCapacity атомарно изменяет счетчик ресурса респондера.
// Строка блокируется на время транзакции, поэтому конкурентное изменение
// не может быть молча перезаписано. Новое значение ниже нуля запрещено.
func (r *UserRepository) AdjustCapacity(ctx context.Context, responderID uuid.UUID, counter string, delta int) (int, error) {
	var column string
	switch counter {
	case models.CounterUnits:
		column = "available_units"
	case models.CounterVehicles:
		column = "available_vehicles"
	default:
		return 0, fmt.Errorf("unknown counter %q: %w", counter, models.ErrInvalidAdjustment)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin adjust transaction: %w", translateStoreError(err))
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
			return 0, fmt.Errorf("responder %s: %w", responderID, models.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to lock responder row: %w", translateStoreError(err))
	}

	if role != models.RoleHospital && role != models.RoleMechanic {
		return 0, fmt.Errorf("account %s holds no capacity: %w", responderID, models.ErrForbidden)
	}

	current := units
	if column == "available_vehicles" {
		current = vehicles
	}
	newValue := current + delta
	if newValue < 0 {
		// Никакой записи: транзакция откатывается при выходе
		return 0, fmt.Errorf("counter %s would become %d: %w", counter, newValue, models.ErrInvalidAdjustment)
	}

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $1, updated_at = NOW() WHERE id = $2;`, column),
		newValue, responderID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update capacity: %w", translateStoreError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit adjust transaction: %w", translateStoreError(err))
	}
	return newValue, nil
}

// GetUserFromCache пытается получить аккаунт из Redis
func (r *UserRepository) GetUserFromCache(ctx context.Context, id uuid.UUID) (*models.User, error) {
	key := fmt.Sprintf("account:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account from cache: %w", err)
	}

	user := &models.User{}
	if err := json.Unmarshal(val, user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account from cache: %w", err)
	}
	return user, nil
}

// SetUserCache сохраняет аккаунт в Redis
func (r *UserRepository) SetUserCache(ctx context.Context, user *models.User) error {
	key := fmt.Sprintf("account:%s", user.ID.String())
	val, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal account for cache: %w", err)
	}
	// Устанавливаем срок жизни кэша, например, 5 минут
	if err := r.redisClient.Set(ctx, key, val, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set account in cache: %w", err)
	}
	return nil
}

// InvalidateUserCache удаляет аккаунт из Redis кэша
func (r *UserRepository) InvalidateUserCache(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("account:%s", id.String())
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate account cache: %w", err)
	}
	return nil
}
