package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/handler"
	"github.com/noah-isme/institute-compass-api/internal/repository"
	"github.com/noah-isme/institute-compass-api/internal/service"
	"github.com/noah-isme/institute-compass-api/pkg/config"
)

// Container holds the wired services and handlers for one process.
type Container struct {
	Auth     *service.AuthService
	Users    *repository.UserRepository
	Metrics  *service.MetricsService
	Handlers Handlers
}

// NewContainer wires repositories, services and handlers. db may be unreachable and
// redisClient may be nil, in which case caching is disabled.
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) *Container {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logger, cfg.Cache.Enabled)

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)

	auth := service.NewAuthService(users, validate, logger, metrics, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiry:     cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
		BcryptCost: cfg.Password.BcryptCost,
	})
	fees := service.NewFeeService(repository.NewFeeRepository(db), students, users, validate, logger, metrics, cfg.InstituteName)

	return &Container{
		Auth:    auth,
		Users:   users,
		Metrics: metrics,
		Handlers: Handlers{
			Auth:        handler.NewAuthHandler(auth),
			Users:       handler.NewUserHandler(service.NewUserService(users, validate, logger)),
			Students:    handler.NewStudentHandler(service.NewStudentService(students, validate, logger), fees),
			Fees:        handler.NewFeeHandler(fees),
			Courses:     handler.NewCourseHandler(service.NewCourseService(repository.NewCourseRepository(db), cache, validate, logger)),
			Batches:     handler.NewBatchHandler(service.NewBatchService(repository.NewBatchRepository(db), cache, validate, logger)),
			Faculty:     handler.NewFacultyHandler(service.NewFacultyService(repository.NewFacultyRepository(db), cache, validate, logger)),
			Assessments: handler.NewAssessmentHandler(service.NewAssessmentService(repository.NewAssessmentRepository(db), validate, logger)),
			Enquiries:   handler.NewEnquiryHandler(service.NewEnquiryService(repository.NewEnquiryRepository(db), validate, logger)),
			Settings:    handler.NewSettingHandler(service.NewSettingService(repository.NewSettingRepository(db), cache, validate, logger)),
			Dashboard:   handler.NewDashboardHandler(service.NewDashboardService(repository.NewDashboardRepository(db), cache, logger)),
			Metrics:     handler.NewMetricsHandler(metrics, db, logger),
		},
	}
}

// Dependencies returns what NewRouter needs from the container.
func (c *Container) Dependencies(logger *zap.Logger) Dependencies {
	return Dependencies{
		Handlers:      c.Handlers,
		Authenticator: c.Auth,
		Audit:         c.Users,
		Metrics:       c.Metrics,
		Logger:        logger,
	}
}
