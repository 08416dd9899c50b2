package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/service"
	"github.com/shenikar/emergency_dispatch_system/internal/service/mocks"
	"github.com/shenikar/emergency_dispatch_system/internal/webhook"
	webhook_mocks "github.com/shenikar/emergency_dispatch_system/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// testStatsTimeWindowMinutes — значение StatsTimeWindowMinutes в тестовой конфигурации.
const testStatsTimeWindowMinutes = 60

// newTestEmergencyService — вспомогательная функция для создания инстанса сервиса с моками.
func newTestEmergencyService(t *testing.T) (service.EmergencyService, *mocks.MockEmergencyRepository, *webhook_mocks.MockWebhookPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockEmergencyRepository(ctrl)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		StatsTimeWindowMinutes: testStatsTimeWindowMinutes,
	}

	svc := service.NewEmergencyService(repoMock, logger, cfg, webhookMock)
	return svc, repoMock, webhookMock
}

func TestCreateEmergency_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	requesterID := uuid.New()
	input := service.CreateEmergencyInput{
		Category:    models.CategoryMedical,
		Type:        "Сердечный приступ",
		Location:    "ул. Ленина 1, Казань",
		Description: "Требуется скорая",
	}

	// Ожидания
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, e *models.Emergency) error {
			assert.Equal(t, models.StatusPending, e.Status)
			assert.Nil(t, e.ResponderID)
			assert.Equal(t, requesterID, e.RequesterID)
			// Симулируем, что БД присвоила ID
			e.ID = uuid.New()
			return nil
		}).Times(1)

	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, "emergency.created", event.EventType)
			assert.Equal(t, models.StatusPending, event.Status)
		}).Return(nil).Times(1)

	// Действие
	emergency, err := svc.Create(ctx, requesterID, input)

	// Проверки
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, emergency.ID)
	assert.Equal(t, models.StatusPending, emergency.Status)
}

func TestCreateEmergency_RepoError(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	requesterID := uuid.New()
	input := service.CreateEmergencyInput{Category: models.CategoryVehicle, Type: "Прокол колеса", Location: "трасса М7"}

	// Ожидания
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(models.ErrStoreUnavailable).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	emergency, err := svc.Create(ctx, requesterID, input)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, emergency)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestDeclineEmergency_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	responderID := uuid.New()
	declined := &models.Emergency{
		ID:          uuid.New(),
		RequesterID: uuid.New(),
		Category:    models.CategoryMedical,
		Status:      models.StatusDeclined,
	}

	// Ожидания
	repoMock.EXPECT().Decline(ctx, responderID, declined.ID).Return(declined, nil).Times(1)
	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, "emergency.declined", event.EventType)
		}).Return(nil).Times(1)

	// Действие
	emergency, err := svc.Decline(ctx, responderID, declined.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, emergency.Status)
}

func TestDeclineEmergency_AlreadyHandled(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	responderID := uuid.New()
	emergencyID := uuid.New()

	// Ожидания
	// Заявка уже не pending
	repoMock.EXPECT().Decline(ctx, responderID, emergencyID).Return(nil, models.ErrInvalidTransition).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	emergency, err := svc.Decline(ctx, responderID, emergencyID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, emergency)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDeclineEmergency_NotResponder(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	callerID := uuid.New()
	emergencyID := uuid.New()

	// Ожидания
	// Отклонять заявки может только аккаунт с ролью респондера
	repoMock.EXPECT().Decline(ctx, callerID, emergencyID).Return(nil, models.ErrForbidden).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	emergency, err := svc.Decline(ctx, callerID, emergencyID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, emergency)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCancelEmergency_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	requesterID := uuid.New()
	cancelled := &models.Emergency{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Category:    models.CategoryVehicle,
		Status:      models.StatusCancelled,
	}

	// Ожидания
	repoMock.EXPECT().Cancel(ctx, cancelled.ID, requesterID).Return(cancelled, nil).Times(1)
	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, "emergency.cancelled", event.EventType)
		}).Return(nil).Times(1)

	// Действие
	emergency, err := svc.Cancel(ctx, requesterID, cancelled.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, emergency.Status)
}

func TestCancelEmergency_Forbidden(t *testing.T) {
	// Подготовка
	svc, repoMock, webhookMock := newTestEmergencyService(t)
	ctx := context.Background()
	strangerID := uuid.New()
	emergencyID := uuid.New()

	// Ожидания
	// Отменять заявку может только ее автор
	repoMock.EXPECT().Cancel(ctx, emergencyID, strangerID).Return(nil, models.ErrForbidden).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	emergency, err := svc.Cancel(ctx, strangerID, emergencyID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, emergency)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestListPending_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	expected := []*models.Emergency{
		{ID: uuid.New(), Category: models.CategoryMedical, Status: models.StatusPending},
		{ID: uuid.New(), Category: models.CategoryMedical, Status: models.StatusPending},
	}

	// Ожидания
	repoMock.EXPECT().ListPending(ctx, models.CategoryMedical).Return(expected, nil).Times(1)

	// Действие
	emergencies, err := svc.ListPending(ctx, models.CategoryMedical)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, emergencies)
}

func TestListAccepted_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	responderID := uuid.New()
	expected := []*models.Emergency{
		{ID: uuid.New(), Status: models.StatusAccepted, ResponderID: &responderID},
	}

	// Ожидания
	repoMock.EXPECT().ListAcceptedByResponder(ctx, responderID).Return(expected, nil).Times(1)

	// Действие
	emergencies, err := svc.ListAccepted(ctx, responderID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, emergencies)
}

func TestSubscribePending_InitialSnapshotAndUpdate(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan models.EmergencyChange)
	initial := []*models.Emergency{
		{ID: uuid.New(), Category: models.CategoryMedical, Status: models.StatusPending},
	}
	updated := []*models.Emergency{}

	// Ожидания
	repoMock.EXPECT().
		SubscribeChanges(ctx).
		Return((<-chan models.EmergencyChange)(changes), func() { close(changes) }, nil).
		Times(1)

	// 1. Снимок при подписке
	first := repoMock.EXPECT().
		ListPending(gomock.Any(), models.CategoryMedical).
		Return(initial, nil).
		Times(1)

	// 2. Снимок после подходящего события
	repoMock.EXPECT().
		ListPending(gomock.Any(), models.CategoryMedical).
		Return(updated, nil).
		Times(1).
		After(first)

	// Действие
	out, cancelSub, err := svc.SubscribePending(ctx, models.CategoryMedical)
	require.NoError(t, err)
	defer cancelSub()

	// Проверки
	// Первый снимок приходит сразу
	select {
	case snap := <-out:
		assert.Equal(t, initial, snap)
	case <-time.After(time.Second):
		t.Fatal("не дождались начального снимка")
	}

	// Событие другой категории игнорируется
	changes <- models.EmergencyChange{
		EmergencyID: uuid.New(),
		Category:    models.CategoryVehicle,
		Status:      models.StatusPending,
	}

	// Событие нужной категории дает новый снимок
	changes <- models.EmergencyChange{
		EmergencyID: initial[0].ID,
		Category:    models.CategoryMedical,
		Status:      models.StatusCancelled,
	}

	select {
	case snap := <-out:
		assert.Equal(t, updated, snap)
	case <-time.After(time.Second):
		t.Fatal("не дождались обновленного снимка")
	}
}

func TestSubscribeAccepted_FiltersByResponder(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	responderID := uuid.New()
	otherResponderID := uuid.New()
	changes := make(chan models.EmergencyChange)
	initial := []*models.Emergency{}
	accepted := []*models.Emergency{
		{ID: uuid.New(), Status: models.StatusAccepted, ResponderID: &responderID},
	}

	// Ожидания
	repoMock.EXPECT().
		SubscribeChanges(ctx).
		Return((<-chan models.EmergencyChange)(changes), func() { close(changes) }, nil).
		Times(1)

	first := repoMock.EXPECT().
		ListAcceptedByResponder(gomock.Any(), responderID).
		Return(initial, nil).
		Times(1)

	repoMock.EXPECT().
		ListAcceptedByResponder(gomock.Any(), responderID).
		Return(accepted, nil).
		Times(1).
		After(first)

	// Действие
	out, cancelSub, err := svc.SubscribeAccepted(ctx, responderID)
	require.NoError(t, err)
	defer cancelSub()

	<-out // начальный снимок

	// Проверки
	// Принятие чужим респондером не триггерит снимок
	changes <- models.EmergencyChange{
		EmergencyID: uuid.New(),
		Category:    models.CategoryMedical,
		Status:      models.StatusAccepted,
		ResponderID: &otherResponderID,
	}

	// Принятие нашим респондером триггерит
	changes <- models.EmergencyChange{
		EmergencyID: accepted[0].ID,
		Category:    models.CategoryMedical,
		Status:      models.StatusAccepted,
		ResponderID: &responderID,
	}

	select {
	case snap := <-out:
		assert.Equal(t, accepted, snap)
	case <-time.After(time.Second):
		t.Fatal("не дождались снимка после принятия")
	}
}

func TestSubscribePending_SnapshotError(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	changes := make(chan models.EmergencyChange)
	cancelled := false

	// Ожидания
	repoMock.EXPECT().
		SubscribeChanges(ctx).
		Return((<-chan models.EmergencyChange)(changes), func() { cancelled = true }, nil).
		Times(1)

	// Начальный снимок падает: подписка не устанавливается, ресурсы освобождаются
	repoMock.EXPECT().
		ListPending(gomock.Any(), models.CategoryMedical).
		Return(nil, models.ErrStoreUnavailable).
		Times(1)

	// Действие
	out, cancelSub, err := svc.SubscribePending(ctx, models.CategoryMedical)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Nil(t, cancelSub)
	assert.True(t, cancelled)
}

func TestGetEmergencyStats_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _ := newTestEmergencyService(t)
	ctx := context.Background()
	expected := &models.EmergencyStats{
		Pending:   3,
		Accepted:  5,
		Declined:  1,
		Cancelled: 2,
	}

	// Ожидания
	repoMock.EXPECT().GetStats(ctx, testStatsTimeWindowMinutes).Return(expected, nil).Times(1)

	// Действие
	stats, err := svc.GetStats(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, stats)
}
