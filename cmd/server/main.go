package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"github.com/arnold/goalsync-api/internal/config"
	"github.com/arnold/goalsync-api/internal/docstore"
	"github.com/arnold/goalsync-api/internal/handlers"
	"github.com/arnold/goalsync-api/internal/routes"
	"github.com/arnold/goalsync-api/internal/store"
	"github.com/arnold/goalsync-api/internal/sync"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	var docs docstore.Store
	if cfg.FirebaseProjectID == "" {
		log.Println("docstore: no Firebase project configured, using in-memory store")
		docs = docstore.NewMemoryStore()
	} else {
		fs, err := docstore.NewFirestoreStore(context.Background(), cfg.FirebaseProjectID, cfg.FirebaseServiceAccount)
		if err != nil {
			log.Fatalf("docstore: %v", err)
		}
		docs = fs
	}
	defer docs.Close()

	tracker := store.NewTracker(docs)
	goals := store.NewGoalStore(docs, tracker)
	engine := sync.NewEngine(goals)
	handlers.Init(goals, engine)

	app := fiber.New()
	app.Use(logger.New())
	app.Use(cors.New())

	routes.Setup(app)

	log.Printf("Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
