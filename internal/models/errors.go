package models

import (
	"errors"
)

// Типизированные ошибки доменных операций. Сервисы возвращают их вызывающему
// как есть (обернутыми через %w), хэндлер отображает в HTTP-коды.
var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyHandled    = errors.New("emergency already handled")
	ErrInvalidAdjustment = errors.New("capacity cannot be reduced below 0")
	ErrInvalidTransition = errors.New("invalid emergency status transition")
	ErrForbidden         = errors.New("operation not permitted for this account")
	ErrConflict          = errors.New("concurrent modification conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// InsufficientResourcesError сообщает, какого именно ресурса не хватило
// для принятия заявки. Оба флага могут быть выставлены одновременно.
type InsufficientResourcesError struct {
	NoUnits    bool
	NoVehicles bool
}

func (e *InsufficientResourcesError) Error() string {
	switch {
	case e.NoUnits && e.NoVehicles:
		return "no units and no vehicles available"
	case e.NoUnits:
		return "no units available"
	default:
		return "no vehicles available"
	}
}

// NewInsufficientResourcesError строит ошибку по текущим значениям счетчиков
func NewInsufficientResourcesError(units, vehicles int) *InsufficientResourcesError {
	return &InsufficientResourcesError{
		NoUnits:    units <= 0,
		NoVehicles: vehicles <= 0,
	}
}

// AsInsufficientResources - хелпер для проверки ошибки на нехватку ресурсов
func AsInsufficientResources(err error) (*InsufficientResourcesError, bool) {
	var insufficientErr *InsufficientResourcesError
	if errors.As(err, &insufficientErr) {
		return insufficientErr, true
	}
	return nil, false
}
