package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/JobMwaura/zintra-sub007/app/controllers"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	apiv1 "github.com/JobMwaura/zintra-sub007/internal/api/v1"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/bootstrap"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/cache"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down")
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePath := findBasePath()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalFactory()

	var rdb *redis.Client
	if cache.IsAvailable() {
		rdb = cache.GetClient()
	}
	svc := bootstrap.Build(context.Background(), db, rdb)

	manager := jobqueue.InitManager(svc.Queue, svc.Tasks()...)
	manager.Start()

	doc, err := apiv1.LoadSpec(basePath + apiv1.DefaultSpecPath)
	if err != nil {
		log.Printf("Warning: API document not loaded: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "zintra",
		BodyLimit: 1 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if pw := env.GetEnv("METRICS_PASSWORD", ""); pw != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				env.GetEnv("METRICS_USER", "admin"): pw,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if doc != nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + apiv1.DefaultSpecPath,
			Path:     "v1",
			Title:    "Zintra API",
		}))
	}

	// ROUTER
	var jobStats controllers.JobStats
	if svc.Queue != nil {
		jobStats = svc.Queue
	}
	router.InstallRouter(app, router.Deps{
		Negotiation:    controllers.NewNegotiationController(svc.Negotiation, svc.Sweeper),
		Notifications:  controllers.NewNotificationController(repos.GetNotificationRepository()),
		Billing:        controllers.NewBillingController(svc.Billing, svc.Capabilities),
		Admin:          controllers.NewAdminController(svc.Relay, jobStats),
		Doc:            doc,
		GatewaySecret:  env.GetEnv("GATEWAY_SECRET", ""),
		CronSecret:     env.GetEnv("CRON_SECRET", ""),
		LimiterStorage: router.LimiterStorage(),
	})

	return app, manager
}

// findBasePath locates the project root from the usual working directories.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + apiv1.DefaultSpecPath); err == nil {
			return path
		}
	}
	return "./"
}
