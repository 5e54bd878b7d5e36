package handlers

import (
	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/logger"
)

// RegisterRoutes mounts the API under /api. auth guards every route except
// health checks and token issuance.
func RegisterRoutes(r gin.IRouter, s *Server, auth gin.HandlerFunc) {
	api := r.Group("/api")

	api.GET("/health/live", s.GetLiveness)
	api.GET("/health/ready", s.GetReadiness)
	api.POST("/auth/token", s.ObtainToken)
	api.POST("/auth/token/refresh", s.RefreshToken)

	priv := api.Group("", auth)

	canEdit := middleware.RequirePermission(domain.PermEditClient)
	canCreate := middleware.RequirePermission(domain.PermCreateClient)
	canDelete := middleware.RequirePermission(domain.PermDeleteClient)
	canManageUsers := middleware.RequirePermission(domain.PermManageUsers)
	canManageRoles := middleware.RequirePermission(domain.PermManageUsers, domain.PermManageRoles)
	canManageFields := middleware.RequirePermission(domain.PermManageCustomFields)

	authGroup := priv.Group("/auth")
	authGroup.GET("/users/me", s.GetCurrentUser)
	authGroup.POST("/change-password", s.ChangePassword)
	authGroup.GET("/users/for-calendar", s.ListCalendarUsers)
	authGroup.GET("/users", canManageUsers, s.ListUsers)
	authGroup.POST("/users", canManageUsers, s.CreateUser)
	authGroup.GET("/users/:id", canManageUsers, s.GetUser)
	authGroup.PATCH("/users/:id", canManageUsers, s.UpdateUser)
	authGroup.DELETE("/users/:id", canManageUsers, s.DeleteUser)
	authGroup.GET("/roles", canManageRoles, s.ListRoles)
	authGroup.PATCH("/roles/:id", canManageRoles, s.UpdateRole)

	clients := priv.Group("/clients")
	clients.GET("", s.ListClients)
	clients.POST("", canCreate, s.CreateClient)
	clients.POST("/draft", canCreate, s.CreateDraft)
	clients.GET("/export/columns", s.ExportColumns)
	clients.POST("/export", s.ExportClients)
	clients.GET("/:id", s.GetClient)
	clients.PATCH("/:id", canEdit, s.UpdateClient)
	clients.PUT("/:id", canEdit, s.UpdateClient)
	clients.DELETE("/:id", canDelete, s.DeleteClient)
	clients.DELETE("/:id/draft", canCreate, s.DiscardDraft)
	clients.POST("/:id/transfer", canEdit, s.TransferUplink)
	clients.POST("/:id/ssh", canEdit, s.RunSSHCommand)
	clients.PUT("/:id/kkt", canEdit, s.RegisterKKT)
	clients.GET("/:id/notes", s.ListNotes)
	clients.POST("/:id/notes", canEdit, s.AddNote)
	clients.GET("/:id/activities", s.ListActivities)
	clients.GET("/:id/files", s.ListFiles)
	clients.POST("/:id/files", canEdit, s.UploadFile)
	clients.GET("/:id/files/:file_id/download", s.DownloadFile)
	clients.DELETE("/:id/files/:file_id", canEdit, s.DeleteFile)

	providers := priv.Group("/providers")
	providers.GET("", s.ListProviders)
	providers.GET("/:id", s.GetProvider)
	providers.POST("", canEdit, s.CreateProvider)
	providers.PUT("/:id", canEdit, s.UpdateProvider)
	providers.DELETE("/:id", canEdit, s.DeleteProvider)

	fields := priv.Group("/custom-fields")
	fields.GET("", s.ListCustomFields)
	fields.POST("", canManageFields, s.CreateCustomField)
	fields.PUT("/:id", canManageFields, s.UpdateCustomField)
	fields.DELETE("/:id", canManageFields, s.DeleteCustomField)

	ofd := priv.Group("/ofd-companies")
	ofd.GET("", s.ListOFDCompanies)
	ofd.POST("", canManageUsers, s.CreateOFDCompany)
	ofd.PUT("/:id", canManageUsers, s.UpdateOFDCompany)
	ofd.DELETE("/:id", canManageUsers, s.DeleteOFDCompany)

	calendar := priv.Group("/calendar")
	calendar.GET("", s.ListDuties)
	calendar.GET("/report", s.DutyReport)
	calendar.POST("/duty", canEdit, s.SetDuty)
	calendar.POST("/duty/bulk", canEdit, s.BulkSetDuty)
	calendar.POST("/holiday", canEdit, s.SetHoliday)
	calendar.DELETE("/month", canEdit, s.ClearMonth)

	priv.GET("/dashboard", s.GetDashboard)

	settings := priv.Group("/settings", canManageUsers)
	settings.GET("", s.GetSettings)
	settings.POST("", s.SaveSettings)
	settings.DELETE("", s.ResetSettings)
	settings.POST("/test-email", s.SendTestEmail)

	priv.GET("/audit-logs", canManageUsers, s.ListAuditLogs)

	logLevel := gin.WrapH(logger.LevelHandler())
	priv.GET("/log/level", canManageUsers, logLevel)
	priv.PUT("/log/level", canManageUsers, logLevel)
}
