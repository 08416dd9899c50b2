package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Регистрация аккаунта не требует идентичности вызывающего
	api.POST("/auth/register", h.register)

	identified := api.Group("")
	identified.Use(CallerIdentityMiddleware(h.logger))
	{
		identified.GET("/accounts/me", h.getProfile)

		// Маршруты реестра ресурсов респондера
		identified.POST("/responders/me/capacity", h.adjustCapacity)
		identified.GET("/responders/me/capacity", h.getCapacity)

		// Маршруты жизненного цикла заявок
		emergencies := identified.Group("/emergencies")
		{
			emergencies.POST("", h.createEmergency)
			emergencies.GET("/accepted", h.listAcceptedEmergencies)
			emergencies.GET("/accepted/stream", h.streamAcceptedEmergencies)
			emergencies.POST("/:id/accept", h.acceptEmergency)
			emergencies.POST("/:id/decline", h.declineEmergency)
			emergencies.POST("/:id/cancel", h.cancelEmergency)
		}
	}

	// Поиск респондеров и просмотр очереди не привязаны к идентичности
	api.GET("/responders", h.searchResponders)
	api.GET("/emergencies/pending", h.listPendingEmergencies)
	api.GET("/emergencies/pending/stream", h.streamPendingEmergencies)
	api.GET("/emergencies/stats", h.getStats)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
