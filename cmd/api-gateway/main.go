package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/absenin/absenin-api/api/swagger"
	"github.com/absenin/absenin-api/internal/handler"
	"github.com/absenin/absenin-api/internal/middleware"
	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/recognition"
	"github.com/absenin/absenin-api/internal/repository"
	"github.com/absenin/absenin-api/internal/service"
	"github.com/absenin/absenin-api/internal/summary"
	"github.com/absenin/absenin-api/pkg/cache"
	"github.com/absenin/absenin-api/pkg/config"
	"github.com/absenin/absenin-api/pkg/database"
	"github.com/absenin/absenin-api/pkg/logger"
	corsmiddleware "github.com/absenin/absenin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/absenin/absenin-api/pkg/middleware/requestid"
	"github.com/absenin/absenin-api/pkg/qr"
)

// @title Absenin API
// @version 1.0.0
// @description School attendance and meal verification gateway
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	attendanceRepo := repository.NewAttendanceRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	mealRepo := repository.NewMealRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	taskRepo := repository.NewTaskRepository(redisClient)

	recognizer := recognition.NewClient(cfg.Recognition.BaseURL, cfg.Recognition.Timeout, logr)
	summaryClient := summary.NewClient(cfg.Summary.BaseURL, cfg.Summary.Timeout)
	passIssuer := qr.NewIssuer(cfg.Meals.PassSecret, cfg.Meals.PassSize)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:          cfg.JWT.Secret,
		Expiration:      cfg.JWT.Expiration,
		RoleAssignments: cfg.Roles.Assignments,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, recognizer, validate, logr).
		WithMetrics(metricsSvc).
		WithCache(cacheRepo)
	mealSvc := service.NewMealService(mealRepo, attendanceRepo, passIssuer, validate, logr).WithMetrics(metricsSvc)
	reportSvc := service.NewReportService(attendanceRepo, cacheRepo, summaryClient, cfg.Reports.CacheTTL, cfg.Reports.ExportName, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	noticeSvc := service.NewNoticeService(noticeRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	mealHandler := handler.NewMealHandler(mealSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, attendanceSvc)
	classHandler := handler.NewClassHandler(classSvc, studentSvc)
	noticeHandler := handler.NewNoticeHandler(noticeSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api")

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	attendance := authed.Group("/attendance", staff)
	attendance.POST("/sessions", attendanceHandler.OpenSession)
	attendance.POST("/sessions/:id/scan", attendanceHandler.Scan)
	attendance.PATCH("/sessions/:id/status", attendanceHandler.EditStatus)
	attendance.POST("/sessions/:id/confirm", attendanceHandler.Confirm)
	attendance.DELETE("/sessions/:id", attendanceHandler.Abandon)
	attendance.GET("/records", attendanceHandler.List)
	attendance.GET("/classes/:id/report", attendanceHandler.ClassReport)

	meals := authed.Group("/meals", staff)
	meals.POST("/verifications", mealHandler.Verify)
	meals.POST("/verifications/pass", mealHandler.RedeemPass)
	meals.GET("/verifications", mealHandler.List)
	meals.GET("/passes/:student_id", mealHandler.IssuePass)

	reports := authed.Group("/reports", staff)
	reports.GET("/classes/:id/summary", reportHandler.Summary)
	reports.GET("/classes/:id/anomalies", reportHandler.Anomalies)
	reports.GET("/classes/:id/export", reportHandler.Export)

	students := authed.Group("/students", staff)
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", studentHandler.Create)
	students.PATCH("/:id/name", studentHandler.UpdateName)
	students.GET("/:id/history", studentHandler.History)

	classes := authed.Group("/classes", staff)
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.GET("/:id/roster", classHandler.Roster)
	classes.POST("", adminOnly, classHandler.Create)

	notices := authed.Group("/notices", staff)
	notices.GET("", noticeHandler.List)
	notices.POST("", noticeHandler.Create)
	notices.DELETE("/:id", adminOnly, noticeHandler.Delete)

	if cfg.Tasks.Enabled {
		taskSvc := service.NewTaskService(taskRepo, validate, logr)
		taskHandler := handler.NewTaskHandler(taskSvc)
		tasks := authed.Group("/tasks")
		tasks.GET("", taskHandler.List)
		tasks.POST("", taskHandler.Create)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
