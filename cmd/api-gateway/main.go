package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-sis-api/api/swagger"
	"github.com/noah-isme/uni-sis-api/internal/handler"
	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/repository"
	"github.com/noah-isme/uni-sis-api/internal/router"
	"github.com/noah-isme/uni-sis-api/internal/service"
	"github.com/noah-isme/uni-sis-api/pkg/cache"
	"github.com/noah-isme/uni-sis-api/pkg/config"
	"github.com/noah-isme/uni-sis-api/pkg/database"
	"github.com/noah-isme/uni-sis-api/pkg/export"
	"github.com/noah-isme/uni-sis-api/pkg/jobs"
	"github.com/noah-isme/uni-sis-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-sis-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-sis-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-sis-api/pkg/storage"
)

// @title University SIS API
// @version 1.0.0
// @description Student information system backend: enrollment, grading, GPA and transcripts
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
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	collegeRepo := repository.NewCollegeRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	termRepo := repository.NewTermRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeComponentRepo := repository.NewGradeComponentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	finalGradeRepo := repository.NewFinalGradeRepository(db)
	gpaRepo := repository.NewGPARepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	transcriptJobRepo := repository.NewTranscriptJobRepository(db)

	// Redis-backed cache is optional. The API degrades to uncached reads
	// when the connection is unavailable.
	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, response cache disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TranscriptTTL, logr, true)
		}
	}

	defaultPolicy := models.StandingPolicy{
		ProbationThreshold: cfg.Academic.ProbationThreshold,
		WarningThreshold:   cfg.Academic.WarningThreshold,
		ApplicationMinGPA:  cfg.Academic.ApplicationMinGPA,
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "uni-sis-api",
		SingleSession:      false,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	collegeSvc := service.NewCollegeService(collegeRepo, departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	curriculumSvc := service.NewCurriculumService(curriculumRepo, departmentRepo, courseRepo, courseRepo, validate, logr)
	batchSvc := service.NewBatchService(batchRepo, curriculumRepo, departmentRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, batchRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, termRepo, facultyRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, batchRepo, validate, logr)
	facultySvc := service.NewFacultyService(facultyRepo, departmentRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, termRepo, batchRepo, courseRepo, courseRepo, validate, logr)
	gpaSvc := service.NewGPAService(gpaRepo, studentRepo, policyRepo, defaultPolicy, logr)
	policySvc := service.NewPolicyService(policyRepo, defaultPolicy, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, studentRepo, departmentRepo, gpaSvc, policyRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Published grades trigger background GPA recomputation.
	gpaQueue := jobs.NewQueue("gpa_recompute", service.GPARecomputeHandler(gpaSvc, logr), jobs.QueueConfig{
		Workers:    1,
		BufferSize: 256,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	gpaQueue.Start(ctx)
	defer gpaQueue.Stop()
	gpaScheduler := service.NewGPARecomputeScheduler(gpaQueue, logr)

	gradeSvc := service.NewGradeService(gradeComponentRepo, gradeRepo, finalGradeRepo, enrollmentRepo, sectionRepo, policyRepo, gpaScheduler, validate, logr)

	// Transcript export pipeline.
	var transcriptSvc *service.TranscriptService
	if cfg.Transcripts.Enabled {
		store, err := storage.NewLocalStorage(cfg.Transcripts.StorageDir)
		if err != nil {
			sugar.Fatalw("failed to init transcript storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Transcripts.SignedURLSecret, cfg.Transcripts.SignedURLTTL)
		exporter := service.NewTranscriptExportService(gpaSvc, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Transcripts.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		worker := service.NewTranscriptWorker(transcriptJobRepo, exporter, cfg.Transcripts.WorkerRetries, logr)
		transcriptQueue := jobs.NewQueue("transcript", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Transcripts.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Transcripts.WorkerRetries,
			RetryDelay: 10 * time.Second,
			Logger:     logr,
		})
		transcriptQueue.Start(ctx)
		defer transcriptQueue.Stop()

		transcriptSvc = service.NewTranscriptService(transcriptJobRepo, studentRepo, transcriptQueue, exporter, logr, service.TranscriptServiceConfig{
			ResultTTL:       cfg.Transcripts.SignedURLTTL,
			CleanupInterval: cfg.Transcripts.CleanupInterval,
		})
		transcriptSvc.RecoverPendingJobs(ctx)
		transcriptSvc.StartCleanup(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Setup(r, router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		User:        handler.NewUserHandler(userSvc),
		Student:     handler.NewStudentHandler(studentSvc),
		Faculty:     handler.NewFacultyHandler(facultySvc),
		College:     handler.NewCollegeHandler(collegeSvc),
		Course:      handler.NewCourseHandler(courseSvc),
		Curriculum:  handler.NewCurriculumHandler(curriculumSvc),
		Batch:       handler.NewBatchHandler(batchSvc),
		Term:        handler.NewTermHandler(termSvc),
		Section:     handler.NewSectionHandler(sectionSvc),
		Enrollment:  handler.NewEnrollmentHandler(enrollmentSvc, cacheSvc, cfg.Cache.ScheduleTTL),
		Grade:       handler.NewGradeHandler(gradeSvc),
		GPA:         handler.NewGPAHandler(gpaSvc, cacheSvc, cfg.Cache.TranscriptTTL),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Application: handler.NewApplicationHandler(applicationSvc),
		Policy:      handler.NewPolicyHandler(policySvc),
		Transcript:  handler.NewTranscriptHandler(transcriptSvc),
		Metrics:     metricsHandler,
	}, router.Deps{
		Auth:        authSvc,
		Metrics:     metricsSvc,
		Users:       userRepo,
		Permissions: models.DefaultRolePermissions(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
