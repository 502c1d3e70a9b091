package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/apiserver/handlers"
	"github.com/prototrack/prototrack/pkg/apiserver/middleware"
	"github.com/prototrack/prototrack/pkg/auth"
	"github.com/prototrack/prototrack/pkg/authz"
	"github.com/prototrack/prototrack/pkg/config"
	"github.com/prototrack/prototrack/pkg/eventbus"
	"github.com/prototrack/prototrack/pkg/invoice"
	"github.com/prototrack/prototrack/pkg/lifecycle"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/report"
	"github.com/prototrack/prototrack/pkg/storage"
	"github.com/prototrack/prototrack/pkg/store/postgres"
	redisclient "github.com/prototrack/prototrack/pkg/store/redis"
	"github.com/prototrack/prototrack/pkg/supplier"
)

type Server struct {
	router *gin.Engine
	db     *postgres.Store
	cfg    *config.Config
	logger *zap.Logger
}

// Dependencies carries the optional outer services; any of them may be
// nil and the corresponding endpoints degrade to 503.
type Dependencies struct {
	Redis     *redisclient.Client
	Bus       *eventbus.Bus
	Files     *storage.Store
	Suppliers *supplier.Directory
	Invoices  *invoice.Client
}

func NewServer(db *postgres.Store, cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	s := &Server{db: db, cfg: cfg, logger: logger}
	s.setupRouter(deps)
	return s
}

func (s *Server) setupRouter(deps Dependencies) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gormDB := s.db.DB()
	users := postgres.NewUserRepository(gormDB)
	roles := postgres.NewRoleRepository(gormDB)
	templates := postgres.NewTemplateRepository(gormDB)
	departments := postgres.NewDepartmentRepository(gormDB)
	protocols := postgres.NewProtocolRepository(gormDB)

	tokens := auth.NewTokenManager([]byte(s.cfg.Auth.JWTSecret), s.cfg.Auth.TokenTTL)

	var cache *redisclient.PermissionCache
	if deps.Redis != nil {
		cache = redisclient.NewPermissionCache(deps.Redis, 0)
	}
	perms := authz.NewService(users, roles, cache, s.logger)

	engine := lifecycle.NewEngine(gormDB, deps.Files, deps.Bus, perms, s.logger)
	reports := report.NewService(protocols, postgres.NewAuditRepository(gormDB))

	authHandler := handlers.NewAuthHandler(users, tokens, perms, s.logger)
	protocolHandler := handlers.NewProtocolHandler(engine, s.db, deps.Files, deps.Bus, s.logger)
	templateHandler := handlers.NewTemplateHandler(templates, s.logger)
	departmentHandler := handlers.NewDepartmentHandler(departments, s.logger)
	userHandler := handlers.NewUserHandler(users, roles, perms, s.logger)
	reportHandler := handlers.NewReportHandler(reports, engine, s.logger)
	supplierHandler := handlers.NewSupplierHandler(deps.Suppliers, s.logger)
	invoiceHandler := handlers.NewInvoiceHandler(deps.Invoices, s.logger)

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	authed := api.Group("")
	authed.Use(middleware.Auth(tokens, users, s.logger))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.POST("/auth/password", authHandler.ChangePassword)

		authed.POST("/protocols", protocolHandler.Create)
		authed.GET("/protocols", protocolHandler.List)
		authed.GET("/protocols/:id", protocolHandler.Get)
		authed.POST("/protocols/:id/transition", protocolHandler.Transition)
		authed.POST("/protocols/:id/rows/:index/toggle", protocolHandler.ToggleRow)
		authed.GET("/protocols/:id/attachments/:attachmentID", protocolHandler.DownloadAttachment)
		authed.GET("/protocols/:id/pdf", protocolHandler.DownloadPDF)
		authed.GET("/protocols/:id/events", protocolHandler.Events)

		authed.GET("/reports/kanban", reportHandler.Kanban)
		authed.GET("/reports/summary", reportHandler.Summary)
		authed.GET("/reports/export", reportHandler.Export)

		// System-wide breakdowns belong to the admin dashboard; the
		// summary endpoint already trims them for everyone else.
		adminReports := authed.Group("")
		adminReports.Use(middleware.RequirePermission(perms, model.PermAdminPanel))
		{
			adminReports.GET("/reports/aggregates/:dimension", reportHandler.Aggregates)
			adminReports.GET("/reports/audit", reportHandler.Audit)
		}

		authed.GET("/templates", templateHandler.List)
		authed.GET("/templates/:id", templateHandler.Get)
		authed.GET("/departments", departmentHandler.List)
		authed.GET("/departments/:id", departmentHandler.Get)
		authed.GET("/suppliers/search", supplierHandler.Search)
		authed.GET("/invoices/:key", invoiceHandler.Lookup)
		authed.GET("/invoices/:key/danfe", invoiceHandler.Danfe)

		manageTemplates := authed.Group("")
		manageTemplates.Use(middleware.RequirePermission(perms, model.PermManageTemplates, model.PermAdminPanel))
		{
			manageTemplates.POST("/templates", templateHandler.Create)
			manageTemplates.PUT("/templates/:id", templateHandler.Update)
			manageTemplates.DELETE("/templates/:id", templateHandler.Delete)
			manageTemplates.POST("/templates/:id/fields", templateHandler.AddField)
			manageTemplates.PUT("/templates/:id/fields/:fieldID", templateHandler.UpdateField)
			manageTemplates.DELETE("/templates/:id/fields/:fieldID", templateHandler.DeleteField)
			manageTemplates.PUT("/templates/:id/fields", templateHandler.ReorderFields)
		}

		manageDepartments := authed.Group("")
		manageDepartments.Use(middleware.RequirePermission(perms, model.PermManageDepartments, model.PermAdminPanel))
		{
			manageDepartments.POST("/departments", departmentHandler.Create)
			manageDepartments.PUT("/departments/:id", departmentHandler.Update)
			manageDepartments.DELETE("/departments/:id", departmentHandler.Delete)
		}

		manageUsers := authed.Group("")
		manageUsers.Use(middleware.RequirePermission(perms, model.PermManageUsers, model.PermAdminPanel))
		{
			manageUsers.POST("/users", userHandler.Create)
			manageUsers.GET("/users", userHandler.List)
			manageUsers.GET("/users/:id", userHandler.Get)
			manageUsers.PUT("/users/:id", userHandler.Update)
			manageUsers.DELETE("/users/:id", userHandler.Delete)
		}

		manageRoles := authed.Group("")
		manageRoles.Use(middleware.RequirePermission(perms, model.PermManageRoles, model.PermAdminPanel))
		{
			manageRoles.POST("/roles", userHandler.CreateRole)
			manageRoles.GET("/roles", userHandler.ListRoles)
			manageRoles.PUT("/roles/:id", userHandler.UpdateRole)
			manageRoles.DELETE("/roles/:id", userHandler.DeleteRole)
			manageRoles.GET("/permissions", userHandler.ListPermissions)
		}
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
