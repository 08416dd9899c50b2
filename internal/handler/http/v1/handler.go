package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/shenikar/emergency_dispatch_system/internal/models"
	"github.com/shenikar/emergency_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	accountService    service.AccountService
	ledgerService     service.LedgerService
	emergencyService  service.EmergencyService
	acceptanceService service.AcceptanceService
	logger            *logrus.Logger
	validate          *validator.Validate
	cfg               *config.Config
}

func NewHandler(
	accountService service.AccountService,
	ledgerService service.LedgerService,
	emergencyService service.EmergencyService,
	acceptanceService service.AcceptanceService,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		accountService:    accountService,
		ledgerService:     ledgerService,
		emergencyService:  emergencyService,
		acceptanceService: acceptanceService,
		logger:            logger,
		validate:          validator.New(),
		cfg:               cfg,
	}
}

// respondServiceError отображает доменные ошибки сервисов в HTTP-коды
func respondServiceError(c *gin.Context, err error) {
	if insufficient, ok := models.AsInsufficientResources(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "insufficient resources",
			"no_units":    insufficient.NoUnits,
			"no_vehicles": insufficient.NoVehicles,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrAlreadyHandled):
		c.JSON(http.StatusConflict, gin.H{"error": "emergency already handled"})
	case errors.Is(err, models.ErrInvalidAdjustment):
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity cannot be reduced below 0"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid emergency status transition"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification conflict, retry"})
	case errors.Is(err, models.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// @Summary Register a new account
// @Description Register a requester, hospital or mechanic account. Responders start with zero capacity.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param account body RegisterRequest true "Account registration request"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input RegisterRequest
	log := h.logger.WithField("method", "register")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), service.RegisterInput{
		Email:   input.Email,
		Role:    input.Role,
		Name:    input.Name,
		Phone:   input.Phone,
		Address: input.Address,
		License: input.License,
	})
	if err != nil {
		log.WithError(err).Error("Failed to register account in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToAccountResponse(account))
}

// @Summary Get own account profile
// @Description Get the caller's account profile. Requires API key and caller identity.
// @Tags Accounts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} AccountResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Account not found"
// @Router /accounts/me [get]
func (h *Handler) getProfile(c *gin.Context) {
	callerID := CallerID(c)
	log := h.logger.WithField("method", "getProfile").WithField("user_id", callerID)

	account, err := h.accountService.GetProfile(c.Request.Context(), callerID)
	if err != nil {
		log.WithError(err).Warn("Failed to get account from service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelToAccountResponse(account))
}

// @Summary Search responders
// @Description Find responders of a category in a city, ordered by available resources.
// @Tags Accounts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param category query string true "Emergency category (medical or vehicle)"
// @Param city query string true "City"
// @Success 200 {array} AccountResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responders [get]
func (h *Handler) searchResponders(c *gin.Context) {
	log := h.logger.WithField("method", "searchResponders")

	category := c.Query("category")
	city := c.Query("city")
	if (category != models.CategoryMedical && category != models.CategoryVehicle) || city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category and city are required"})
		return
	}

	responders, err := h.accountService.SearchResponders(c.Request.Context(), category, city)
	if err != nil {
		log.WithError(err).Error("Failed to search responders in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAccountResponses(responders))
}

// @Summary Adjust responder capacity
// @Description Atomically add or remove one unit of the caller's capacity counter. The counter cannot go below zero.
// @Tags Ledger
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param adjustment body AdjustCapacityRequest true "Capacity adjustment request"
// @Success 200 {object} AdjustCapacityResponse
// @Failure 400 {object} map[string]string "Invalid request body or adjustment below zero"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Account is not a responder"
// @Failure 404 {object} map[string]string "Responder not found"
// @Router /responders/me/capacity [post]
func (h *Handler) adjustCapacity(c *gin.Context) {
	callerID := CallerID(c)
	var input AdjustCapacityRequest
	log := h.logger.WithField("method", "adjustCapacity").WithField("responder_id", callerID)

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newValue, err := h.ledgerService.Adjust(c.Request.Context(), callerID, input.Counter, input.Delta)
	if err != nil {
		log.WithError(err).Warn("Failed to adjust capacity in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, AdjustCapacityResponse{Counter: input.Counter, NewValue: newValue})
}

// @Summary Get responder capacity
// @Description Get the caller's current capacity counters.
// @Tags Ledger
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} CapacityResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Account is not a responder"
// @Failure 404 {object} map[string]string "Responder not found"
// @Router /responders/me/capacity [get]
func (h *Handler) getCapacity(c *gin.Context) {
	callerID := CallerID(c)
	log := h.logger.WithField("method", "getCapacity").WithField("responder_id", callerID)

	units, vehicles, err := h.ledgerService.GetCapacity(c.Request.Context(), callerID)
	if err != nil {
		log.WithError(err).Warn("Failed to get capacity from service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CapacityResponse{AvailableUnits: units, AvailableVehicles: vehicles})
}

// @Summary Create an emergency
// @Description Create a new emergency request. It starts pending and unassigned.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param emergency body CreateEmergencyRequest true "Emergency creation request"
// @Success 201 {object} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies [post]
func (h *Handler) createEmergency(c *gin.Context) {
	callerID := CallerID(c)
	var input CreateEmergencyRequest
	log := h.logger.WithField("method", "createEmergency").WithField("requester_id", callerID)

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emergency, err := h.emergencyService.Create(c.Request.Context(), callerID, service.CreateEmergencyInput{
		Category:    input.Category,
		Type:        input.Type,
		Location:    input.Location,
		Description: input.Description,
	})
	if err != nil {
		log.WithError(err).Error("Failed to create emergency in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToEmergencyResponse(emergency))
}

// @Summary List pending emergencies
// @Description Snapshot of pending, unassigned emergencies of a category in arrival order.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param category query string true "Emergency category (medical or vehicle)"
// @Success 200 {array} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid category"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/pending [get]
func (h *Handler) listPendingEmergencies(c *gin.Context) {
	log := h.logger.WithField("method", "listPendingEmergencies")

	category := c.Query("category")
	if category != models.CategoryMedical && category != models.CategoryVehicle {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	emergencies, err := h.emergencyService.ListPending(c.Request.Context(), category)
	if err != nil {
		log.WithError(err).Error("Failed to list pending emergencies from service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToEmergencyResponses(emergencies))
}

// @Summary Stream pending emergencies
// @Description Server-sent events stream of pending emergency snapshots. A fresh snapshot is sent on every matching change.
// @Tags Emergencies
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param category query string true "Emergency category (medical or vehicle)"
// @Success 200 {array} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid category"
// @Router /emergencies/pending/stream [get]
func (h *Handler) streamPendingEmergencies(c *gin.Context) {
	log := h.logger.WithField("method", "streamPendingEmergencies")

	category := c.Query("category")
	if category != models.CategoryMedical && category != models.CategoryVehicle {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	updates, cancel, err := h.emergencyService.SubscribePending(c.Request.Context(), category)
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to pending emergencies")
		respondServiceError(c, err)
		return
	}
	defer cancel()

	h.streamSnapshots(c, updates)
}

// @Summary List accepted emergencies
// @Description Emergencies accepted by the calling responder.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} EmergencyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/accepted [get]
func (h *Handler) listAcceptedEmergencies(c *gin.Context) {
	callerID := CallerID(c)
	log := h.logger.WithField("method", "listAcceptedEmergencies").WithField("responder_id", callerID)

	emergencies, err := h.emergencyService.ListAccepted(c.Request.Context(), callerID)
	if err != nil {
		log.WithError(err).Error("Failed to list accepted emergencies from service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToEmergencyResponses(emergencies))
}

// @Summary Stream accepted emergencies
// @Description Server-sent events stream of the calling responder's accepted emergencies.
// @Tags Emergencies
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Success 200 {array} EmergencyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /emergencies/accepted/stream [get]
func (h *Handler) streamAcceptedEmergencies(c *gin.Context) {
	callerID := CallerID(c)
	log := h.logger.WithField("method", "streamAcceptedEmergencies").WithField("responder_id", callerID)

	updates, cancel, err := h.emergencyService.SubscribeAccepted(c.Request.Context(), callerID)
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to accepted emergencies")
		respondServiceError(c, err)
		return
	}
	defer cancel()

	h.streamSnapshots(c, updates)
}

// streamSnapshots гонит снимки заявок подписчику через server-sent events
// до закрытия канала или отключения клиента
func (h *Handler) streamSnapshots(c *gin.Context, updates <-chan []*models.Emergency) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		snapshot, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("emergencies", ModelsToEmergencyResponses(snapshot))
		return true
	})
}

// @Summary Accept an emergency
// @Description Atomically bind a pending emergency to the calling responder, consuming one unit of each capacity counter.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Emergency ID"
// @Success 200 {object} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid emergency ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Emergency or responder not found"
// @Failure 409 {object} map[string]string "Already handled, insufficient resources or conflict"
// @Router /emergencies/{id}/accept [post]
func (h *Handler) acceptEmergency(c *gin.Context) {
	callerID := CallerID(c)
	emergencyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency ID"})
		return
	}
	log := h.logger.WithField("method", "acceptEmergency").
		WithField("responder_id", callerID).
		WithField("emergency_id", emergencyID)

	emergency, err := h.acceptanceService.Accept(c.Request.Context(), callerID, emergencyID)
	if err != nil {
		log.WithError(err).Warn("Failed to accept emergency in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelToEmergencyResponse(emergency))
}

// @Summary Decline an emergency
// @Description Transition a pending emergency to declined.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Emergency ID"
// @Success 200 {object} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid emergency ID"
// @Failure 404 {object} map[string]string "Emergency not found"
// @Failure 409 {object} map[string]string "Emergency is not pending"
// @Router /emergencies/{id}/decline [post]
func (h *Handler) declineEmergency(c *gin.Context) {
	callerID := CallerID(c)
	emergencyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency ID"})
		return
	}
	log := h.logger.WithField("method", "declineEmergency").WithField("emergency_id", emergencyID)

	emergency, err := h.emergencyService.Decline(c.Request.Context(), callerID, emergencyID)
	if err != nil {
		log.WithError(err).Warn("Failed to decline emergency in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelToEmergencyResponse(emergency))
}

// @Summary Cancel an emergency
// @Description Cancel a pending emergency. Only the original requester may cancel.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Emergency ID"
// @Success 200 {object} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid emergency ID"
// @Failure 403 {object} map[string]string "Caller is not the requester"
// @Failure 404 {object} map[string]string "Emergency not found"
// @Failure 409 {object} map[string]string "Emergency is not pending"
// @Router /emergencies/{id}/cancel [post]
func (h *Handler) cancelEmergency(c *gin.Context) {
	callerID := CallerID(c)
	emergencyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency ID"})
		return
	}
	log := h.logger.WithField("method", "cancelEmergency").
		WithField("requester_id", callerID).
		WithField("emergency_id", emergencyID)

	emergency, err := h.emergencyService.Cancel(c.Request.Context(), callerID, emergencyID)
	if err != nil {
		log.WithError(err).Warn("Failed to cancel emergency in service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelToEmergencyResponse(emergency))
}

// @Summary Get emergency statistics
// @Description Get counts of emergencies per status within the configured time window.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.emergencyService.GetStats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get stats from service")
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Pending:   stats.Pending,
		Accepted:  stats.Accepted,
		Declined:  stats.Declined,
		Cancelled: stats.Cancelled,
	})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
