package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/waste3d/coursehub-api/config"
	"github.com/waste3d/coursehub-api/internal/application/usecase"
	"github.com/waste3d/coursehub-api/internal/domain"
	"github.com/waste3d/coursehub-api/internal/infrastructure/cache"
	"github.com/waste3d/coursehub-api/internal/infrastructure/email"
	"github.com/waste3d/coursehub-api/internal/infrastructure/payment"
	"github.com/waste3d/coursehub-api/internal/infrastructure/repository"
	"github.com/waste3d/coursehub-api/internal/infrastructure/security"
	"github.com/waste3d/coursehub-api/internal/infrastructure/upload"
	"github.com/waste3d/coursehub-api/internal/middleware"
	handlers "github.com/waste3d/coursehub-api/internal/transport/http"
	"github.com/waste3d/coursehub-api/pkg/mq"
)

func main() {

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Student{},
		&domain.Course{},
		&domain.Chapter{},
		&domain.Video{},
		&domain.Tag{},
		&domain.CourseBenefit{},
		&domain.Comment{},
		&domain.CourseComment{},
		&domain.CommentReply{},
		&domain.Rating{},
		&domain.Purchase{},
		&domain.Subscription{},
		&domain.VideoCompletion{},
	); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.AmqpURL, "coursehub.events")
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	entityCache := cache.NewEntityCache(rdb)
	scanner := cache.NewKeyspaceScanner(rdb)

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	gateway := payment.NewGateway(payment.Config{
		APIKey:         cfg.StripeKey,
		WebhookSecret:  cfg.StripeWebhookSecret(),
		MonthlyPriceID: cfg.StripeMonthlyPriceID,
		YearlyPriceID:  cfg.StripeYearlyPriceID,
		SuccessURL:     cfg.FrontendURL,
		CancelURL:      cfg.FrontendURL,
	})
	uploader := upload.NewClient(cfg.UploadURL, cfg.UploadKey)
	mailer := email.NewEmailSender(cfg.SendgridKey, cfg.SMTPEmail)

	hasher := security.NewPasswordHasher()
	tokenManager := security.NewTokenManager(cfg.AccessSecret)

	tagReconciler := usecase.NewTagReconciler(entityCache, courseRepo)
	resolver := usecase.NewEntitlementResolver(entityCache, purchaseRepo, studentRepo, courseRepo)
	courseUseCase := usecase.NewCourseUseCase(entityCache, scanner, courseRepo, commentRepo, uploader, tagReconciler, resolver)
	checkoutUseCase := usecase.NewCheckoutUseCase(entityCache, courseRepo, studentRepo, purchaseRepo, gateway, publisher)
	webhookProcessor := usecase.NewPaymentWebhookProcessor(
		entityCache, scanner, studentRepo, purchaseRepo, subscriptionRepo,
		gateway, mailer, publisher, cfg.FrontendURL+"/dashboard/billing",
	)
	dashboardUseCase := usecase.NewDashboardUseCase(entityCache, courseRepo, studentRepo, purchaseRepo, subscriptionRepo, resolver)
	authUseCase := usecase.NewAuthUseCase(entityCache, studentRepo, hasher, tokenManager)

	limiter := middleware.NewRateLimiter(rdb)
	router := handlers.NewRouter(
		handlers.NewAuthHandler(authUseCase),
		handlers.NewCourseHandler(courseUseCase, resolver),
		handlers.NewCheckoutHandler(checkoutUseCase, webhookProcessor),
		handlers.NewDashboardHandler(dashboardUseCase),
		limiter,
		tokenManager,
		cfg.Origins(),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	log.Printf("CourseHub API is running on port %s...", cfg.HTTPPort)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
