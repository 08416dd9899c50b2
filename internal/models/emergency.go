package models

import (
	"time"

	"github.com/google/uuid"
)

// Категории заявок
const (
	CategoryMedical = "medical"
	CategoryVehicle = "vehicle"
)

// Статусы заявки. pending — начальный, остальные — терминальные.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

// Emergency представляет заявку на экстренную помощь.
// Инвариант: ResponderID != nil тогда и только тогда, когда Status == accepted.
type Emergency struct {
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

// EmergencyChange - событие изменения заявки, доставляемое подписчикам
// через канал уведомлений. Несет ровно столько, сколько нужно для фильтрации.
type EmergencyChange struct {
	EmergencyID uuid.UUID  `json:"emergency_id"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	ResponderID *uuid.UUID `json:"responder_id,omitempty"`
}

// EmergencyStats - количество заявок по статусам за временное окно
type EmergencyStats struct {
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Declined  int `json:"declined"`
	Cancelled int `json:"cancelled"`
}
