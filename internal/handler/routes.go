package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/middleware"
	"github.com/noah-isme/smartpass-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Audit         *AuditHandler
	Users         *UserHandler
	Attendance    *AttendanceHandler
	Registrations *RegistrationHandler
	Events        *EventHandler
	Tickets       *TicketHandler
	Approvals     *ApprovalHandler
	Wellness      *WellnessHandler
	Messages      *MessageHandler
	Courses       *CourseHandler
}

// RouteGuards carries the middleware shared across route groups.
type RouteGuards struct {
	Auth         gin.HandlerFunc
	ScanThrottle gin.HandlerFunc
}

// RegisterRoutes mounts the workflow API on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, guards RouteGuards) {
	admin := middleware.RequireAdmin()
	staff := middleware.RequireRoles(models.RoleProfessor, models.RoleDeptHead, models.RoleSysAdmin, models.RoleSuperAdmin)
	counselors := middleware.RequireRoles(models.RoleCounselor, models.RoleSysAdmin, models.RoleSuperAdmin)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/signup", h.Registrations.Signup)

	scan := []gin.HandlerFunc{}
	if guards.ScanThrottle != nil {
		scan = append(scan, guards.ScanThrottle)
	}
	api.POST("/attendance/scan", append(scan, h.Attendance.Scan)...)

	secured := api.Group("")
	secured.Use(guards.Auth)

	secured.GET("/auth/me", h.Auth.Me)

	audit := secured.Group("/audit", admin)
	audit.GET("", h.Audit.Query)
	audit.POST("", h.Audit.Append)
	audit.GET("/export", h.Audit.Export)

	users := secured.Group("/users")
	users.GET("", admin, h.Users.List)
	users.POST("", admin, h.Users.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleSysAdmin), string(models.RoleSuperAdmin), middleware.SelfParam), h.Users.Get)
	users.PUT("/:id", admin, h.Users.Update)
	users.DELETE("/:id", admin, h.Users.Delete)

	cards := secured.Group("/rfid/cards", admin)
	cards.GET("", h.Users.ListCards)
	cards.POST("", h.Users.BindCard)
	cards.GET("/:card", h.Users.ResolveCard)
	cards.DELETE("/:card", h.Users.UnbindCard)

	attendance := secured.Group("/attendance")
	attendance.POST("", staff, h.Attendance.Record)
	attendance.GET("", staff, h.Attendance.List)
	attendance.GET("/export", staff, h.Attendance.Export)
	attendance.GET("/summary", staff, h.Attendance.Summary)

	registrations := secured.Group("/registrations", admin)
	registrations.GET("/pending", h.Registrations.ListPending)
	registrations.POST("/:id/approve", h.Registrations.Approve)
	registrations.POST("/:id/reject", h.Registrations.Reject)

	events := secured.Group("/events")
	events.POST("", middleware.RequireRoles(models.RoleStudent), h.Events.Request)
	events.GET("", h.Events.List)
	events.GET("/:id", h.Events.Get)
	events.PATCH("/:id", middleware.RequireRoles(models.RoleCounselor), h.Events.Respond)

	tickets := secured.Group("/tickets")
	tickets.POST("", h.Tickets.Create)
	tickets.GET("", h.Tickets.List)
	tickets.GET("/:id", h.Tickets.Get)
	tickets.PATCH("/:id/status", admin, h.Tickets.UpdateStatus)

	approvals := secured.Group("/approvals")
	approvals.POST("", h.Approvals.Create)
	approvals.GET("", admin, h.Approvals.List)
	approvals.POST("/:id/decision", admin, h.Approvals.Decide)

	wellness := secured.Group("/wellness")
	wellness.POST("", middleware.RequireRoles(models.RoleStudent), h.Wellness.Submit)
	wellness.GET("", h.Wellness.List)
	wellness.GET("/summary", counselors, h.Wellness.Summary)

	selfOrAdmin := middleware.RBAC(string(models.RoleSysAdmin), string(models.RoleSuperAdmin), middleware.SelfParam)
	messages := secured.Group("/messages")
	messages.POST("", h.Messages.Send)
	messages.GET("/:id", selfOrAdmin, h.Messages.Inbox)
	messages.GET("/:id/unread", selfOrAdmin, h.Messages.UnreadCount)
	messages.PUT("/:id/read", selfOrAdmin, h.Messages.MarkRead)

	courses := secured.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/enrollments", h.Courses.Enrollments)
}
