package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/api/swagger"
	"github.com/noah-isme/institute-compass-api/internal/handler"
	"github.com/noah-isme/institute-compass-api/internal/middleware"
	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/internal/service"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/institute-compass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/institute-compass-api/pkg/middleware/requestid"
	timeoutmiddleware "github.com/noah-isme/institute-compass-api/pkg/middleware/timeout"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Students    *handler.StudentHandler
	Fees        *handler.FeeHandler
	Courses     *handler.CourseHandler
	Batches     *handler.BatchHandler
	Faculty     *handler.FacultyHandler
	Assessments *handler.AssessmentHandler
	Enquiries   *handler.EnquiryHandler
	Settings    *handler.SettingHandler
	Dashboard   *handler.DashboardHandler
	Metrics     *handler.MetricsHandler
}

// Dependencies are the collaborators shared across route groups.
type Dependencies struct {
	Handlers      Handlers
	Authenticator middleware.Authenticator
	Audit         middleware.AuditWriter
	Metrics       *service.MetricsService
	Logger        *zap.Logger
}

// Options control mounting.
type Options struct {
	Production     bool
	APIPrefix      string
	RequestTimeout time.Duration
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter builds the gin engine with every route mounted under opts.APIPrefix.
func NewRouter(opts Options, deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, "/metrics"))
	r.Use(timeoutmiddleware.Middleware(opts.RequestTimeout))
	r.Use(middleware.ResponseMeta())

	h := deps.Handlers
	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)
	if !opts.Production {
		swagger.BasePath = prefix
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	api.GET("/health", h.Metrics.Health)

	authed := middleware.RequireAuthenticated(deps.Authenticator)
	optional := middleware.OptionalAuthenticated(deps.Authenticator)
	staff := middleware.Staff()
	admin := middleware.AdminOnly()
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource)
	}

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", authed, h.Auth.Me)
	auth.PUT("/profile", authed, h.Auth.UpdateProfile)
	auth.PUT("/password", authed, h.Auth.ChangePassword)
	auth.POST("/logout", authed, h.Auth.Logout)

	users := api.Group("/users", authed)
	users.GET("", admin, h.Users.List)
	users.GET("/:id/roles", middleware.RequireSelfOrRoleIn("id", models.RoleAdmin), h.Users.Roles)
	users.POST("/:id/roles", admin, h.Users.AddRole)
	users.DELETE("/:id/roles/:role", admin, h.Users.RemoveRole)

	students := api.Group("/students", authed)
	students.GET("", staff, h.Students.List)
	students.POST("", staff, audit(models.AuditActionCreate, "students"), h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/ledger", h.Students.Ledger)
	students.PUT("/:id", staff, audit(models.AuditActionUpdate, "students"), h.Students.Update)
	students.DELETE("/:id", staff, audit(models.AuditActionDelete, "students"), h.Students.Delete)

	fees := api.Group("/fees", authed, staff)
	fees.GET("", h.Fees.List)
	fees.GET("/export", h.Fees.Export)
	fees.GET("/:id", h.Fees.Get)
	fees.GET("/:id/receipt", h.Fees.Receipt)
	fees.POST("", h.Fees.Create)
	fees.DELETE("/:id", h.Fees.Delete)

	courses := api.Group("/courses")
	courses.GET("", optional, h.Courses.List)
	courses.GET("/:id", optional, h.Courses.Get)
	courses.POST("", authed, staff, audit(models.AuditActionCreate, "courses"), h.Courses.Create)
	courses.PUT("/:id", authed, staff, audit(models.AuditActionUpdate, "courses"), h.Courses.Update)
	courses.DELETE("/:id", authed, staff, audit(models.AuditActionDelete, "courses"), h.Courses.Delete)

	batches := api.Group("/batches")
	batches.GET("", optional, h.Batches.List)
	batches.GET("/:id", authed, h.Batches.Get)
	batches.POST("", authed, staff, audit(models.AuditActionCreate, "batches"), h.Batches.Create)
	batches.PUT("/:id", authed, staff, audit(models.AuditActionUpdate, "batches"), h.Batches.Update)
	batches.DELETE("/:id", authed, staff, audit(models.AuditActionDelete, "batches"), h.Batches.Delete)

	faculty := api.Group("/faculty")
	faculty.GET("", optional, h.Faculty.List)
	faculty.GET("/:id", optional, h.Faculty.Get)
	faculty.POST("", authed, staff, audit(models.AuditActionCreate, "faculty"), h.Faculty.Create)
	faculty.PUT("/:id", authed, staff, audit(models.AuditActionUpdate, "faculty"), h.Faculty.Update)
	faculty.DELETE("/:id", authed, staff, audit(models.AuditActionDelete, "faculty"), h.Faculty.Delete)

	tests := api.Group("/tests", authed)
	tests.GET("", h.Assessments.ListTests)
	tests.POST("", staff, audit(models.AuditActionCreate, "tests"), h.Assessments.CreateTest)
	tests.PUT("/:id", staff, audit(models.AuditActionUpdate, "tests"), h.Assessments.UpdateTest)
	tests.DELETE("/:id", staff, audit(models.AuditActionDelete, "tests"), h.Assessments.DeleteTest)
	tests.GET("/:id/marks", h.Assessments.ListMarks)
	tests.POST("/:id/marks", staff, audit(models.AuditActionUpdate, "marks"), h.Assessments.RecordMark)

	enquiries := api.Group("/enquiries")
	enquiries.POST("", h.Enquiries.Submit)
	enquiries.GET("", authed, staff, h.Enquiries.List)
	enquiries.PUT("/:id", authed, staff, audit(models.AuditActionUpdate, "enquiries"), h.Enquiries.UpdateStatus)
	enquiries.DELETE("/:id", authed, staff, audit(models.AuditActionDelete, "enquiries"), h.Enquiries.Delete)

	settings := api.Group("/settings")
	settings.GET("", h.Settings.List)
	settings.GET("/:key", h.Settings.Get)
	settings.PUT("/:key", authed, staff, audit(models.AuditActionUpdate, "settings"), h.Settings.Upsert)

	api.GET("/dashboard/summary", authed, staff, h.Dashboard.Summary)

	r.NoRoute(notFound(prefix, opts.StaticDir))
	return r
}

// notFound answers API misses with the JSON envelope and serves the single page app for
// everything else when a static directory is configured.
func notFound(prefix, staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		urlPath := c.Request.URL.Path
		isAPI := prefix != "" && (urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/"))
		if staticDir == "" || isAPI || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
			return
		}

		// http.ServeFile refuses paths with ".." segments, so serve by the cleaned path.
		cleaned := path.Clean("/" + urlPath)
		c.Request.URL.Path = cleaned
		file := filepath.Join(staticDir, filepath.FromSlash(cleaned))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(filepath.Join(staticDir, "index.html"))
	}
}
