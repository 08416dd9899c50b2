package v1

import "github.com/shenikar/emergency_dispatch_system/internal/models"

// ModelToAccountResponse преобразует доменную модель аккаунта в DTO для ответа
func ModelToAccountResponse(model *models.User) *AccountResponse {
	return &AccountResponse{
		ID:                model.ID,
		Email:             model.Email,
		Role:              model.Role,
		Name:              model.Name,
		Phone:             model.Phone,
		Address:           model.Address,
		City:              model.City,
		License:           model.License,
		AvailableUnits:    model.AvailableUnits,
		AvailableVehicles: model.AvailableVehicles,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// ModelsToAccountResponses преобразует слайс моделей аккаунтов в слайс DTO
func ModelsToAccountResponses(models []*models.User) []*AccountResponse {
	responses := make([]*AccountResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToAccountResponse(model)
	}
	return responses
}

// ModelToEmergencyResponse преобразует доменную модель заявки в DTO для ответа
func ModelToEmergencyResponse(model *models.Emergency) *EmergencyResponse {
	return &EmergencyResponse{
		ID:          model.ID,
		RequesterID: model.RequesterID,
		Category:    model.Category,
		Type:        model.Type,
		Location:    model.Location,
		Description: model.Description,
		Status:      model.Status,
		ResponderID: model.ResponderID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// ModelsToEmergencyResponses преобразует слайс моделей заявок в слайс DTO
func ModelsToEmergencyResponses(models []*models.Emergency) []*EmergencyResponse {
	responses := make([]*EmergencyResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToEmergencyResponse(model)
	}
	return responses
}
