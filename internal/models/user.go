package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли аккаунтов. Госпитали и механики — респондеры, они держат счетчики ресурсов.
const (
	RoleUser     = "user"
	RoleHospital = "hospital"
	RoleMechanic = "mechanic"
)

// Имена счетчиков ресурсов респондера
const (
	CounterUnits    = "units"    // койки (госпиталь) или механики в смене (автосервис)
	CounterVehicles = "vehicles" // машины скорой помощи или эвакуаторы
)

type User struct {
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

// IsResponder сообщает, может ли аккаунт принимать заявки
func (u *User) IsResponder() bool {
	return u.Role == RoleHospital || u.Role == RoleMechanic
}

// ResponderRoleForCategory возвращает роль респондера, обслуживающую категорию заявки
func ResponderRoleForCategory(category string) string {
	if category == CategoryMedical {
		return RoleHospital
	}
	return RoleMechanic
}
