package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/service"
	"github.com/shenikar/emergency_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// testMocks собирает моки всех сервисов хендлера
type testMocks struct {
	account    *mocks.MockAccountService
	ledger     *mocks.MockLedgerService
	emergency  *mocks.MockEmergencyService
	acceptance *mocks.MockAcceptanceService
}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) (*Handler, testMocks, *gin.Engine) {
	ctrl := gomock.NewController(t)
	m := testMocks{
		account:    mocks.NewMockAccountService(ctrl),
		ledger:     mocks.NewMockLedgerService(ctrl),
		emergency:  mocks.NewMockEmergencyService(ctrl),
		acceptance: mocks.NewMockAcceptanceService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:                []string{"test-api-key"},
		StatsTimeWindowMinutes: 60,
	}

	handler := NewHandler(m.account, m.ledger, m.emergency, m.acceptance, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return handler, m, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// identityHeader подставляет идентичность вызывающего
func identityHeader(id uuid.UUID) map[string]string {
	return map[string]string{"X-User-ID": id.String()}
}

func TestRegister_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	accountID := uuid.New()
	reqBody := RegisterRequest{
		Email:   "clinic@example.com",
		Role:    models.RoleHospital,
		Name:    "City Hospital",
		Phone:   "+70000000000",
		Address: "Lenin st. 1, Kazan",
	}

	m.account.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input service.RegisterInput) (*models.User, error) {
			assert.Equal(t, reqBody.Email, input.Email)
			return &models.User{
				ID:      accountID,
				Email:   input.Email,
				Role:    input.Role,
				Name:    input.Name,
				Phone:   input.Phone,
				Address: input.Address,
				City:    "Kazan",
			}, nil
		}).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp AccountResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, accountID, resp.ID)
	assert.Equal(t, "Kazan", resp.City)
}

func TestRegister_HTTP_InvalidJSON(t *testing.T) {
	_, m, router := newTestHandler(t)

	m.account.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBufferString(`{"email": "x"`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestRegister_HTTP_ValidationError(t *testing.T) {
	_, m, router := newTestHandler(t)
	reqBody := RegisterRequest{ // Отсутствует Email
		Role:    models.RoleUser,
		Name:    "Some User",
		Phone:   "+70000000000",
		Address: "Lenin st. 1, Kazan",
	}

	m.account.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Email' failed on the 'required' tag")
}

func TestGetProfile_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	expected := &models.User{
		ID:   callerID,
		Role: models.RoleUser,
		Name: "Some User",
	}

	m.account.EXPECT().GetProfile(gomock.Any(), callerID).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/accounts/me", nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp AccountResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, callerID, resp.ID)
}

func TestGetProfile_HTTP_MissingIdentity(t *testing.T) {
	_, m, router := newTestHandler(t)

	m.account.EXPECT().GetProfile(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/accounts/me", nil) // Нет X-User-ID

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "caller identity required")
}

func TestGetProfile_HTTP_NotFound(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	m.account.EXPECT().GetProfile(gomock.Any(), callerID).Return(nil, models.ErrNotFound).Times(1)

	w := makeRequest(router, "GET", "/api/v1/accounts/me", nil, identityHeader(callerID))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestSearchResponders_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	expected := []*models.User{
		{ID: uuid.New(), Role: models.RoleHospital, AvailableUnits: 10},
		{ID: uuid.New(), Role: models.RoleHospital, AvailableUnits: 3},
	}

	m.account.EXPECT().SearchResponders(gomock.Any(), models.CategoryMedical, "Kazan").Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/responders?category=medical&city=Kazan", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []AccountResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
	assert.Equal(t, 10, resp[0].AvailableUnits)
}

func TestSearchResponders_HTTP_MissingParams(t *testing.T) {
	_, m, router := newTestHandler(t)

	m.account.EXPECT().SearchResponders(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/responders?category=medical", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "category and city are required")
}

func TestAdjustCapacity_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	reqBody := AdjustCapacityRequest{
		Counter: models.CounterUnits,
		Delta:   2,
	}

	m.ledger.EXPECT().Adjust(gomock.Any(), callerID, models.CounterUnits, 2).Return(7, nil).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/responders/me/capacity", bytes.NewBuffer(bodyBytes), identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp AdjustCapacityResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, models.CounterUnits, resp.Counter)
	assert.Equal(t, 7, resp.NewValue)
}

func TestAdjustCapacity_HTTP_UnknownCounter(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	m.ledger.EXPECT().Adjust(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/responders/me/capacity",
		bytes.NewBufferString(`{"counter": "beds", "delta": 1}`), identityHeader(callerID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Counter' failed on the 'oneof' tag")
}

func TestAdjustCapacity_HTTP_BelowZero(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	reqBody := AdjustCapacityRequest{
		Counter: models.CounterVehicles,
		Delta:   -5,
	}

	m.ledger.EXPECT().
		Adjust(gomock.Any(), callerID, models.CounterVehicles, -5).
		Return(0, fmt.Errorf("service: could not adjust capacity: %w", models.ErrInvalidAdjustment)).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/responders/me/capacity", bytes.NewBuffer(bodyBytes), identityHeader(callerID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "capacity cannot be reduced below 0")
}

func TestAdjustCapacity_HTTP_NotResponder(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	reqBody := AdjustCapacityRequest{
		Counter: models.CounterUnits,
		Delta:   1,
	}

	m.ledger.EXPECT().
		Adjust(gomock.Any(), callerID, models.CounterUnits, 1).
		Return(0, fmt.Errorf("service: could not adjust capacity: %w", models.ErrForbidden)).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/responders/me/capacity", bytes.NewBuffer(bodyBytes), identityHeader(callerID))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestGetCapacity_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	m.ledger.EXPECT().GetCapacity(gomock.Any(), callerID).Return(12, 4, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/responders/me/capacity", nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp CapacityResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, 12, resp.AvailableUnits)
	assert.Equal(t, 4, resp.AvailableVehicles)
}

func TestCreateEmergency_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()
	reqBody := CreateEmergencyRequest{
		Category: models.CategoryMedical,
		Type:     "Heart attack",
		Location: "Lenin st. 1, Kazan",
	}

	m.emergency.EXPECT().
		Create(gomock.Any(), callerID, gomock.Any()).
		DoAndReturn(func(_ context.Context, requesterID uuid.UUID, input service.CreateEmergencyInput) (*models.Emergency, error) {
			assert.Equal(t, reqBody.Category, input.Category)
			return &models.Emergency{
				ID:          emergencyID,
				RequesterID: requesterID,
				Category:    input.Category,
				Type:        input.Type,
				Location:    input.Location,
				Status:      models.StatusPending,
			}, nil
		}).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/emergencies", bytes.NewBuffer(bodyBytes), identityHeader(callerID))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, emergencyID, resp.ID)
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Nil(t, resp.ResponderID)
}

func TestCreateEmergency_HTTP_InvalidCategory(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	m.emergency.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/emergencies",
		bytes.NewBufferString(`{"category": "fire", "type": "Blaze", "location": "somewhere"}`), identityHeader(callerID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Category' failed on the 'oneof' tag")
}

func TestCreateEmergency_HTTP_StoreUnavailable(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	// Недоступное хранилище должно отдаваться как 503, а не как 500
	m.emergency.EXPECT().
		Create(gomock.Any(), callerID, gomock.Any()).
		Return(nil, fmt.Errorf("service: could not create emergency: %w", models.ErrStoreUnavailable)).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/emergencies",
		bytes.NewBufferString(`{"category": "medical", "type": "Heart attack", "location": "Lenin st. 1, Kazan"}`), identityHeader(callerID))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store unavailable")
}

func TestListPendingEmergencies_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	expected := []*models.Emergency{
		{ID: uuid.New(), Category: models.CategoryMedical, Status: models.StatusPending},
		{ID: uuid.New(), Category: models.CategoryMedical, Status: models.StatusPending},
	}

	m.emergency.EXPECT().ListPending(gomock.Any(), models.CategoryMedical).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/emergencies/pending?category=medical", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
}

func TestListPendingEmergencies_HTTP_InvalidCategory(t *testing.T) {
	_, m, router := newTestHandler(t)

	m.emergency.EXPECT().ListPending(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/emergencies/pending?category=fire", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid category")
}

func TestListAcceptedEmergencies_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	expected := []*models.Emergency{
		{ID: uuid.New(), Status: models.StatusAccepted, ResponderID: &callerID},
	}

	m.emergency.EXPECT().ListAccepted(gomock.Any(), callerID).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/emergencies/accepted", nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 1)
	require.NotNil(t, resp[0].ResponderID)
	assert.Equal(t, callerID, *resp[0].ResponderID)
}

func TestAcceptEmergency_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()
	accepted := &models.Emergency{
		ID:          emergencyID,
		RequesterID: uuid.New(),
		Category:    models.CategoryMedical,
		Status:      models.StatusAccepted,
		ResponderID: &callerID,
	}

	m.acceptance.EXPECT().Accept(gomock.Any(), callerID, emergencyID).Return(accepted, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, resp.Status)
	require.NotNil(t, resp.ResponderID)
	assert.Equal(t, callerID, *resp.ResponderID)
}

func TestAcceptEmergency_HTTP_InvalidID(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()

	m.acceptance.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/emergencies/invalid-uuid/accept", nil, identityHeader(callerID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid emergency ID")
}

func TestAcceptEmergency_HTTP_AlreadyHandled(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()

	m.acceptance.EXPECT().
		Accept(gomock.Any(), callerID, emergencyID).
		Return(nil, fmt.Errorf("service: could not accept emergency: %w", models.ErrAlreadyHandled)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "emergency already handled")
}

func TestAcceptEmergency_HTTP_InsufficientResources(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()
	insufficient := models.NewInsufficientResourcesError(0, 2)

	m.acceptance.EXPECT().
		Accept(gomock.Any(), callerID, emergencyID).
		Return(nil, fmt.Errorf("service: could not accept emergency: %w", insufficient)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusConflict, w.Code)

	// В ответе видно, каких именно ресурсов не хватило
	var resp map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "insufficient resources", resp["error"])
	assert.Equal(t, true, resp["no_units"])
	assert.Equal(t, false, resp["no_vehicles"])
}

func TestAcceptEmergency_HTTP_Conflict(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()

	m.acceptance.EXPECT().
		Accept(gomock.Any(), callerID, emergencyID).
		Return(nil, fmt.Errorf("service: acceptance failed after 3 attempts: %w", models.ErrConflict)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "concurrent modification conflict")
}

func TestDeclineEmergency_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()
	declined := &models.Emergency{
		ID:          emergencyID,
		RequesterID: uuid.New(),
		Category:    models.CategoryVehicle,
		Status:      models.StatusDeclined,
	}

	m.emergency.EXPECT().Decline(gomock.Any(), callerID, emergencyID).Return(declined, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/decline", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, resp.Status)
}

func TestDeclineEmergency_HTTP_NotPending(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()

	m.emergency.EXPECT().
		Decline(gomock.Any(), callerID, emergencyID).
		Return(nil, fmt.Errorf("service: could not decline emergency: %w", models.ErrInvalidTransition)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/decline", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "invalid emergency status transition")
}

func TestCancelEmergency_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()
	cancelled := &models.Emergency{
		ID:          emergencyID,
		RequesterID: callerID,
		Category:    models.CategoryMedical,
		Status:      models.StatusCancelled,
	}

	m.emergency.EXPECT().Cancel(gomock.Any(), callerID, emergencyID).Return(cancelled, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/cancel", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp EmergencyResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, resp.Status)
}

func TestCancelEmergency_HTTP_Forbidden(t *testing.T) {
	_, m, router := newTestHandler(t)
	callerID := uuid.New()
	emergencyID := uuid.New()

	m.emergency.EXPECT().
		Cancel(gomock.Any(), callerID, emergencyID).
		Return(nil, fmt.Errorf("service: could not cancel emergency: %w", models.ErrForbidden)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/cancel", emergencyID), nil, identityHeader(callerID))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestGetStats_HTTP_Success(t *testing.T) {
	_, m, router := newTestHandler(t)
	expected := &models.EmergencyStats{
		Pending:   3,
		Accepted:  5,
		Declined:  1,
		Cancelled: 2,
	}

	m.emergency.EXPECT().GetStats(gomock.Any()).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/emergencies/stats", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, expected.Pending, resp.Pending)
	assert.Equal(t, expected.Accepted, resp.Accepted)
}

func TestGetStats_HTTP_ServiceError(t *testing.T) {
	_, m, router := newTestHandler(t)
	serviceError := errors.New("failed to get stats")

	m.emergency.EXPECT().GetStats(gomock.Any()).Return(nil, serviceError).Times(1)

	w := makeRequest(router, "GET", "/api/v1/emergencies/stats", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestHealthCheck_Success(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAPIKeyAuthMiddleware_Success(t *testing.T) {
	// Создаем Gin-роутер и добавляем middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "valid-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMiddleware_MissingKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil) // Нет API ключа
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")
}

func TestAPIKeyAuthMiddleware_InvalidKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "invalid-key"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestCallerIdentityMiddleware_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	router.Use(CallerIdentityMiddleware(logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-User-ID": "not-a-uuid"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid caller identity")
}

func TestCallerIdentityMiddleware_SetsCallerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	callerID := uuid.New()
	router.Use(CallerIdentityMiddleware(logger))
	router.GET("/test", func(c *gin.Context) {
		assert.Equal(t, callerID, CallerID(c))
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, identityHeader(callerID))
	assert.Equal(t, http.StatusOK, w.Code)
}
