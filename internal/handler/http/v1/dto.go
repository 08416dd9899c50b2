package v1

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest DTO для регистрации аккаунта
// @Description DTO для регистрации аккаунта
type RegisterRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Role    string `json:"role" validate:"required,oneof=user hospital mechanic"`
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	License string `json:"license,omitempty"`
}

// AccountResponse DTO для ответа с информацией об аккаунте
// @Description DTO для ответа с информацией об аккаунте
type AccountResponse struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Address           string    `json:"address"`
	City              string    `json:"city"`
	License           string    `json:"license,omitempty"`
	AvailableUnits    int       `json:"available_units"`
	AvailableVehicles int       `json:"available_vehicles"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AdjustCapacityRequest DTO для изменения счетчика ресурса
// @Description DTO для изменения счетчика ресурса
type AdjustCapacityRequest struct {
	Counter string `json:"counter" validate:"required,oneof=units vehicles"`
	Delta   int    `json:"delta" validate:"required"`
}

// AdjustCapacityResponse DTO для ответа на изменение счетчика
// @Description DTO для ответа на изменение счетчика
type AdjustCapacityResponse struct {
	Counter  string `json:"counter"`
	NewValue int    `json:"new_value"`
}

// CapacityResponse DTO для текущих значений счетчиков респондера
// @Description DTO для текущих значений счетчиков респондера
type CapacityResponse struct {
	AvailableUnits    int `json:"available_units"`
	AvailableVehicles int `json:"available_vehicles"`
}

// CreateEmergencyRequest DTO для создания заявки
// @Description DTO для создания заявки
type CreateEmergencyRequest struct {
	Category    string `json:"category" validate:"required,oneof=medical vehicle"`
	Type        string `json:"type" validate:"required,min=2,max=255"`
	Location    string `json:"location" validate:"required"`
	Description string `json:"description,omitempty"`
}

// EmergencyResponse DTO для ответа с информацией о заявке
// @Description DTO для ответа с информацией о заявке
type EmergencyResponse struct {
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	Category    string     `json:"category"`
	Type        string     `json:"type"`
	Location    string     `json:"location"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	ResponderID *uuid.UUID `json:"responder_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StatsResponse DTO для ответа со статистикой заявок
// @Description DTO для ответа со статистикой заявок
type StatsResponse struct {
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Declined  int `json:"declined"`
	Cancelled int `json:"cancelled"`
}
