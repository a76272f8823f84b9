package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"huntzen-care/middleware"
	"huntzen-care/models"
	"huntzen-care/monitoring"
)

const BasePath = "/api/v1"

type RouterOptions struct {
	Logger      *slog.Logger
	CORSOrigins []string
	// Metrics mounts GET /metrics.
	Metrics bool
}

// NewRouter builds the engine with the ambient middleware stack and every
// API route.
func NewRouter(h *Handler, auth middleware.Authenticator, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(opts.Logger),
		middleware.SentryMiddleware(),
		middleware.ErrorHandler(opts.Logger),
		middleware.PrometheusMetrics(),
	)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if opts.Metrics {
		r.GET("/metrics", gin.WrapH(monitoring.Handler()))
	}

	SetupRoutes(r, h, auth)
	return r
}

func SetupRoutes(r *gin.Engine, h *Handler, auth middleware.Authenticator) {
	api := r.Group(BasePath)
	api.GET("/health", h.Health)

	public := api.Group("")
	{
		public.POST("/auth/login", h.Login)
		public.POST("/auth/register/employee", h.RegisterEmployee)
		public.POST("/auth/register/practitioner", h.RegisterPractitioner)
		public.GET("/invitations/:token", h.LookupInvitation)
	}

	authed := api.Group("", middleware.RequireAuth(auth))

	account := authed.Group("/auth")
	{
		account.GET("/me", h.Me)
		account.POST("/change-password", h.ChangePassword)
		account.POST("/logout", h.Logout)
	}

	admins := []models.Role{models.RoleAdminRH, models.RoleAdminHuntZen, models.RoleSuperAdmin}
	platform := []models.Role{models.RoleAdminHuntZen, models.RoleSuperAdmin}

	hr := authed.Group("/hr", middleware.RequireRoles(admins...))
	{
		hr.POST("/invitations", h.CreateInvitation)
		hr.GET("/invitations", h.ListInvitations)
		hr.DELETE("/invitations/:id", h.RevokeInvitation)
		hr.GET("/employees", h.ListEmployees)
		hr.GET("/employees/:id", h.GetEmployee)
		hr.PATCH("/employees/:id/status", h.SetEmployeeStatus)
		hr.GET("/stats", h.CompanyStats)
		hr.GET("/activity", h.CompanyActivity)
	}

	companies := authed.Group("/companies", middleware.RequireRoles(admins...))
	{
		companies.POST("", h.CreateCompany)
		companies.GET("", h.ListCompanies)
		companies.GET("/:id", h.GetCompany)
		companies.PATCH("/:id", h.UpdateCompany)
		companies.PATCH("/:id/status", h.SetCompanyStatus)
	}

	admin := authed.Group("/admin", middleware.RequireRoles(platform...))
	{
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:id/status", h.SetUserStatus)
		admin.PATCH("/users/:id/role", h.ChangeUserRole)
		admin.PATCH("/practitioners/:id/verify", h.VerifyPractitioner)
		admin.GET("/stats", h.PlatformStats)
		admin.GET("/activity", h.PlatformActivity)
	}

	practitioners := authed.Group("/practitioners")
	{
		practitioners.GET("", h.ListPractitioners)
		practitioners.GET("/search", h.SearchPractitioners)
		practitioners.GET("/:id", h.GetPractitioner)
		practitioners.GET("/:id/availability", h.GetAvailability)
		practitioners.GET("/:id/slots", h.AvailableSlots)
		practitioners.PATCH("/me", middleware.RequireRoles(models.RolePractitioner), h.UpdateMyProfile)
		practitioners.PUT("/me/availability", middleware.RequireRoles(models.RolePractitioner), h.SetMyAvailability)
	}

	consultations := authed.Group("/consultations")
	{
		consultations.POST("", middleware.RequireRoles(models.RoleEmployee), h.BookConsultation)
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:id", h.GetConsultation)
		consultations.PATCH("/:id/confirm", h.ConfirmConsultation)
		consultations.PATCH("/:id/cancel", h.CancelConsultation)
		consultations.PATCH("/:id/complete", h.CompleteConsultation)
		consultations.PATCH("/:id/reschedule", h.RescheduleConsultation)
		consultations.PATCH("/:id/notes", h.UpdateConsultationNotes)
	}

	messages := authed.Group("/messages")
	{
		messages.POST("", h.SendMessage)
		messages.GET("/conversations", h.ListConversations)
		messages.GET("/conversations/:userId", h.GetConversation)
		messages.GET("/unread-count", h.UnreadMessages)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/unread-count", h.UnreadNotifications)
		notifications.PATCH("/read-all", h.MarkAllNotificationsRead)
		notifications.PATCH("/:id/read", h.MarkNotificationRead)
		notifications.DELETE("/:id", h.DeleteNotification)
	}

	journal := authed.Group("/journal", middleware.RequireRoles(models.RoleEmployee))
	{
		journal.POST("", h.CreateJournalEntry)
		journal.GET("", h.ListJournalEntries)
		journal.GET("/stats", h.MoodStats)
		journal.GET("/:id", h.GetJournalEntry)
		journal.PATCH("/:id", h.UpdateJournalEntry)
		journal.DELETE("/:id", h.DeleteJournalEntry)
	}

	emergency := authed.Group("/emergency")
	{
		emergency.GET("/contacts", h.ListContacts)
		emergency.GET("/resources", h.ListResources)

		editors := emergency.Group("", middleware.RequireRoles(admins...))
		editors.POST("/contacts", h.CreateContact)
		editors.PATCH("/contacts/:id", h.UpdateContact)
		editors.DELETE("/contacts/:id", h.DeleteContact)
		editors.POST("/resources", h.CreateResource)
		editors.PATCH("/resources/:id", h.UpdateResource)
		editors.DELETE("/resources/:id", h.DeleteResource)
	}
}
