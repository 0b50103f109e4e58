package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/acadportal-api/api/swagger"
	"github.com/noah-isme/acadportal-api/internal/handler"
	"github.com/noah-isme/acadportal-api/internal/middleware"
	"github.com/noah-isme/acadportal-api/internal/models"
	"github.com/noah-isme/acadportal-api/internal/repository"
	"github.com/noah-isme/acadportal-api/internal/service"
	"github.com/noah-isme/acadportal-api/pkg/cache"
	"github.com/noah-isme/acadportal-api/pkg/config"
	"github.com/noah-isme/acadportal-api/pkg/database"
	"github.com/noah-isme/acadportal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/acadportal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/acadportal-api/pkg/middleware/requestid"
	"github.com/noah-isme/acadportal-api/pkg/storage"
)

// @title Academic Portal API
// @version 1.0.0
// @description Academic administration portal: enrollments, attendance, grades and notices
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	sectionEnrollmentRepo := repository.NewSectionEnrollmentRepository(db)
	courseEnrollmentRepo := repository.NewCourseEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	gradeRecordRepo := repository.NewGradeRecordRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Shared infrastructure.
	notifier := service.NewLogNotifier(logr)
	metricsService := service.NewMetricsService()
	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	transcriptStore, err := storage.NewLocalStorage(cfg.Transcripts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init transcript storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Transcripts.SignedURLSecret, cfg.Transcripts.SignedURLTTL)
	submissionStore := service.NewSubmissionStore(uploadStore, cfg.Uploads.BaseURL)

	// Services.
	authService := service.NewAuthService(userRepo, studentRepo, facultyRepo, notifier, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	studentService := service.NewStudentService(studentRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, courseRepo, facultyRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(sectionEnrollmentRepo, courseRepo, studentRepo, metricsService, validate, logr)
	courseEnrollmentService := service.NewCourseEnrollmentService(courseEnrollmentRepo, courseRepo, studentRepo, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, subjectRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRecordRepo, studentRepo, validate, logr)
	assessmentService := service.NewAssessmentService(assessmentRepo, subjectRepo, studentRepo, submissionStore, validate, logr)
	noticeService := service.NewNoticeService(noticeRepo, courseEnrollmentRepo, sectionEnrollmentRepo, studentRepo, facultyRepo, validate, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Enrollments: sectionEnrollmentRepo,
		Attendance:  attendanceRepo,
		Students:    studentRepo,
		Faculty:     facultyRepo,
		Courses:     courseRepo,
		Sections:    courseRepo,
		Cache:       cacheRepo,
		Metrics:     metricsService,
		CacheTTL:    cfg.Dashboard.CacheTTL,
		Logger:      logr,
	})
	transcriptService := service.NewTranscriptService(gradeService, transcriptStore, signer, service.TranscriptConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Transcripts.SignedURLTTL,
	}, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transcriptService.Start(ctx)
	defer transcriptService.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	courseHandler := handler.NewCourseHandler(courseService, enrollmentService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	courseEnrollmentHandler := handler.NewCourseEnrollmentHandler(courseEnrollmentService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	noticeHandler := handler.NewNoticeHandler(noticeService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	transcriptHandler := handler.NewTranscriptHandler(transcriptService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := string(models.RoleAdmin)
	superadmin := string(models.RoleSuperAdmin)
	faculty := string(models.RoleFaculty)
	student := string(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authService), authHandler.Me)
		}

		protected := api.Group("")
		protected.Use(middleware.JWT(authService))
		{
			protected.PUT("/users/:id/activation", middleware.RBAC(admin, superadmin), authHandler.SetActive)

			students := protected.Group("/students")
			{
				students.GET("", middleware.RBAC(admin, superadmin, faculty), studentHandler.List)
				students.POST("", middleware.RBAC(admin, superadmin), studentHandler.Create)
				students.GET("/:id", middleware.RBAC(admin, superadmin, faculty, "SELF"), studentHandler.Get)
				students.PUT("/:id", middleware.RBAC(admin, superadmin), studentHandler.Update)
				students.GET("/:id/course-enrollments", middleware.RBAC(admin, superadmin, faculty, "SELF"), courseEnrollmentHandler.ListByStudent)
				students.GET("/:id/cgpa", middleware.RBAC(admin, superadmin, faculty, "SELF"), gradeHandler.CGPA)
				students.GET("/:id/transcript", middleware.RBAC(admin, superadmin, faculty, "SELF"), gradeHandler.Transcript)
			}

			courses := protected.Group("/courses")
			{
				courses.GET("", courseHandler.List)
				courses.POST("", middleware.RBAC(admin, superadmin), courseHandler.Create)
				courses.GET("/:id", courseHandler.Get)
				courses.PUT("/:id", middleware.RBAC(admin, superadmin), courseHandler.Update)
				courses.GET("/:id/sections", courseHandler.ListSections)
				courses.POST("/:id/sections", middleware.RBAC(admin, superadmin), courseHandler.CreateSection)
			}
			protected.GET("/sections/:id/availability", courseHandler.SectionAvailability)

			subjects := protected.Group("/subjects")
			{
				subjects.GET("", subjectHandler.List)
				subjects.POST("", middleware.RBAC(admin, superadmin), subjectHandler.Create)
				subjects.GET("/:id", subjectHandler.Get)
				subjects.PUT("/:id", middleware.RBAC(admin, superadmin), subjectHandler.Update)
				subjects.GET("/:id/assessments", assessmentHandler.ListBySubject)
				subjects.GET("/:id/students/:studentId/contributions", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.Contributions)
			}

			enrollments := protected.Group("/enrollments")
			enrollments.Use(middleware.RBAC(admin, superadmin))
			{
				enrollments.GET("", enrollmentHandler.List)
				enrollments.POST("", enrollmentHandler.Create)
				enrollments.POST("/bulk", enrollmentHandler.BulkCreate)
				enrollments.PUT("/:id/status", enrollmentHandler.ChangeStatus)
				enrollments.DELETE("/:id", enrollmentHandler.Delete)
			}

			courseEnrollments := protected.Group("/course-enrollments")
			courseEnrollments.Use(middleware.RBAC(admin, superadmin))
			{
				courseEnrollments.POST("", courseEnrollmentHandler.Create)
				courseEnrollments.PUT("/:id/status", courseEnrollmentHandler.ChangeStatus)
				courseEnrollments.DELETE("/:id", courseEnrollmentHandler.Delete)
			}

			attendance := protected.Group("/attendance")
			{
				attendance.POST("", middleware.RBAC(admin, superadmin, faculty), attendanceHandler.Record)
				attendance.GET("", middleware.RBAC(admin, superadmin, faculty), attendanceHandler.List)
				attendance.GET("/subjects/:subjectId/students/:studentId", attendanceHandler.Percentage)
				attendance.GET("/courses/:courseId/students/:studentId", attendanceHandler.CourseSummary)
			}

			assessments := protected.Group("/assessments")
			{
				assessments.POST("", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.Create)
				assessments.DELETE("/:id", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.Delete)
				assessments.POST("/marks", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.Grade)
				assessments.POST("/marks/bulk", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.BulkGrade)
				assessments.POST("/:id/submissions", middleware.RBAC(student), assessmentHandler.Submit)
				assessments.GET("/:id/marks", middleware.RBAC(admin, superadmin, faculty), assessmentHandler.Marks)
			}

			grades := protected.Group("/grades")
			{
				grades.GET("", middleware.RBAC(admin, superadmin, faculty), gradeHandler.List)
				grades.POST("/marks", middleware.RBAC(admin, superadmin, faculty), gradeHandler.UpsertMarks)
				grades.POST("/marks/bulk", middleware.RBAC(admin, superadmin, faculty), gradeHandler.BulkUpsertMarks)
			}

			notices := protected.Group("/notices")
			{
				notices.GET("/feed", noticeHandler.Feed)
				notices.GET("", middleware.RBAC(admin, superadmin), noticeHandler.List)
				notices.POST("", middleware.RBAC(admin, superadmin), noticeHandler.Create)
				notices.GET("/:id", noticeHandler.Get)
				notices.PUT("/:id", middleware.RBAC(admin, superadmin), noticeHandler.Update)
				notices.DELETE("/:id", middleware.RBAC(admin, superadmin), noticeHandler.Delete)
			}

			transcripts := protected.Group("/transcripts")
			{
				transcripts.POST("", middleware.RBAC(admin, superadmin, faculty), transcriptHandler.Request)
				transcripts.GET("/:id", middleware.RBAC(admin, superadmin, faculty), transcriptHandler.Status)
			}

			protected.GET("/dashboard", middleware.RBAC(admin, superadmin), dashboardHandler.Summary)
		}

		// Download links carry their own signed token, no session required.
		api.GET("/transcripts/download/:token", transcriptHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
