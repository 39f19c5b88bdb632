package handlers

import (
	"law_timeline_app_go/middleware"
	"law_timeline_app_go/models"

	"github.com/labstack/echo/v4"
)

// RegisterTimelineRoutes mounts the case timeline API on g. The group must
// already resolve the actor (middleware.RequireActor); uploads are passed
// through the optional upload middleware.
func RegisterTimelineRoutes(g *echo.Group, uploads ...echo.MiddlewareFunc) {
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleLawyer, models.RoleStaff)

	// Cases
	g.POST("/cases", CreateCaseHandler, staff)
	g.GET("/cases/:id", GetCaseHandler)
	g.PATCH("/cases/:id", UpdateCaseHandler, staff)
	g.GET("/cases/:id/audit", GetCaseAuditHandler, staff)
	g.DELETE("/clients/:id", TeardownClientHandler, middleware.RequireRole(models.RoleAdmin))

	// Milestones
	g.GET("/cases/:id/progress", GetCaseProgressHandler)
	g.POST("/cases/:id/milestones", CreateCaseMilestoneHandler, staff)
	g.POST("/cases/:id/milestones/seed", SeedMilestonesHandler, staff)
	g.PUT("/cases/:id/milestones/order", ReorderCaseMilestonesHandler, staff)
	g.POST("/cases/:id/milestones/:mid/complete", CompleteCaseMilestoneHandler, staff)
	g.POST("/cases/:id/milestones/:mid/reset", ResetCaseMilestoneHandler, staff)
	g.DELETE("/cases/:id/milestones/:mid", DeleteCaseMilestoneHandler, staff)

	// Documents
	g.GET("/cases/:id/documents", ListCaseDocumentsHandler)
	g.POST("/cases/:id/documents/seed", SeedDocumentsHandler, staff)
	g.POST("/cases/:id/documents", UploadAdHocDocumentHandler, uploads...)
	g.POST("/cases/:id/documents/:did/file", AttachDocumentFileHandler, uploads...)
	g.GET("/cases/:id/documents/:did/file", DownloadDocumentFileHandler)
	g.PATCH("/cases/:id/documents/:did/review", ReviewDocumentHandler, staff)

	// Key dates
	g.GET("/cases/:id/key-dates", ListKeyDatesHandler)
	g.GET("/cases/:id/key-dates/:kid", GetKeyDateHandler)
	g.POST("/cases/:id/key-dates", CreateKeyDateHandler, staff)
	g.PUT("/cases/:id/key-dates/:kid", UpdateKeyDateHandler, staff)
	g.DELETE("/cases/:id/key-dates/:kid", DeleteKeyDateHandler, staff)

	// Notifications
	g.GET("/notifications", GetNotificationsHandler)
	g.POST("/notifications/:id/read", MarkNotificationReadHandler)
}
