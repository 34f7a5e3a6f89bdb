package main

import (
	"github.com/gin-gonic/gin"
	"github.com/yourusername/clientbook/handlers"
	"github.com/yourusername/clientbook/metrics"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
)

func newRouter(app *App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(app.Log))
	router.Use(metrics.Middleware())

	health := handlers.NewHealthHandler(app.Reports, app.Log)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	m := handlers.Mutations{Bus: app.Bus, Cache: app.Cache, Log: app.Log}
	auth := handlers.NewAuthHandler(app.Identity, app.Log)
	clients := handlers.NewClientHandler(app.Store, m)
	projects := handlers.NewProjectHandler(app.Store, m)
	invoices := handlers.NewInvoiceHandler(app.Invoices, app.Store, m)
	notes := handlers.NewNoteHandler(app.Store, m)
	dashboard := handlers.NewDashboardHandler(app.Reports, app.Cache, app.Config.DashboardCacheTTL, app.Log)
	settings := handlers.NewSettingsHandler(app.Identity, app.Store, m)
	notifications := handlers.NewNotificationHandler(app.Bus)

	api := router.Group("/api/v1")
	{
		public := api.Group("/auth", app.AuthLimit.Handler())
		public.POST("/signup", auth.SignUp)
		public.POST("/signin", auth.SignIn)
		public.POST("/refresh", auth.Refresh)
	}

	protected := api.Group("", middleware.JwtAuthMiddleware(app.Config, app.Identity))
	admin := middleware.RequireRole(models.RoleAdmin)
	{
		protected.POST("/auth/signout", auth.SignOut)
		protected.GET("/auth/session", auth.Session)

		protected.GET("/clients", clients.List)
		protected.POST("/clients", admin, clients.Create)
		protected.GET("/clients/:id", clients.Get)
		protected.PUT("/clients/:id", admin, clients.Update)
		protected.DELETE("/clients/:id", admin, clients.Delete)
		protected.GET("/clients/:id/overview", clients.Overview)

		protected.GET("/projects", projects.List)
		protected.POST("/projects", admin, projects.Create)
		protected.GET("/projects/:id", projects.Get)
		protected.PUT("/projects/:id", admin, projects.Update)
		protected.DELETE("/projects/:id", admin, projects.Delete)

		protected.GET("/invoices", invoices.List)
		protected.POST("/invoices", admin, invoices.Create)
		protected.GET("/invoices/:id", invoices.Get)
		protected.PUT("/invoices/:id", admin, invoices.Update)
		protected.DELETE("/invoices/:id", admin, invoices.Delete)
		protected.POST("/invoices/:id/recalculate", admin, invoices.Recalculate)
		protected.GET("/invoices/:id/pdf", invoices.PDF)
		protected.GET("/invoices/:id/line-items", invoices.ListLineItems)
		protected.POST("/invoices/:id/line-items", admin, invoices.AddLineItem)
		protected.PUT("/line-items/:id", admin, invoices.UpdateLineItem)
		protected.DELETE("/line-items/:id", admin, invoices.DeleteLineItem)
		protected.GET("/invoices/:id/payments", invoices.ListPayments)
		protected.POST("/invoices/:id/payments", admin, invoices.RecordPayment)
		protected.DELETE("/payments/:id", admin, invoices.DeletePayment)

		protected.GET("/notes", notes.List)
		protected.POST("/notes", admin, notes.Create)
		protected.GET("/notes/:id", notes.Get)
		protected.PUT("/notes/:id", admin, notes.Update)
		protected.DELETE("/notes/:id", admin, notes.Delete)

		protected.GET("/dashboard", dashboard.Get)

		protected.GET("/settings/org", settings.GetOrg)
		protected.PUT("/settings/org", admin, settings.UpdateOrg)
		protected.PUT("/settings/profile", settings.UpdateProfile)
		protected.PUT("/settings/password", settings.ChangePassword)
		protected.GET("/members", settings.ListMembers)
		protected.POST("/members", admin, settings.CreateMember)

		protected.GET("/notifications/stream", notifications.Stream)
	}

	return router
}
