package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lmittmann/tint"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperbox/backend/internal/auth"
	"github.com/whisperbox/backend/internal/config"
	"github.com/whisperbox/backend/internal/mailer"
	"github.com/whisperbox/backend/internal/messages"
	"github.com/whisperbox/backend/internal/middleware"
	"github.com/whisperbox/backend/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	users := store.NewUserStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	codes := store.NewCodeStore(rdb)

	// ── Session token codec ──────────────────────────────────
	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// ── Mailer ───────────────────────────────────────────────
	mail, err := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(users, codes, codec, mail)
	messageHandler := messages.NewHandler(users)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/sign-up", authHandler.SignUp)
		r.Post("/verify-code", authHandler.VerifyCode)
		r.Post("/sign-in", authHandler.SignIn)
		r.Post("/sign-out", authHandler.SignOut)
		r.Post("/send-message", messageHandler.SendMessage)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(codec))
			r.Get("/session", authHandler.Session)
			r.Get("/get-messages", messageHandler.GetMessages)
			r.Get("/accept-messages", messageHandler.GetAcceptMessages)
			r.Post("/accept-messages", messageHandler.SetAcceptMessages)
			r.Delete("/delete-message/{id}", messageHandler.DeleteMessage)
		})
	})

	// Page routes, redirect-guarded. Rendering lives in the frontend; these
	// stubs exist so the guard policy applies when pages are served from here.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(codec, cfg.SignInPath))
		r.Get("/", page("home"))
		r.Get("/sign-in", page("sign-in"))
		r.Get("/sign-up", page("sign-up"))
		r.Get("/verify/{username}", page("verify"))
		r.Get("/dashboard", page("dashboard"))
		r.Get("/dashboard/*", page("dashboard"))
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}

func page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><title>%s</title>", name)
	}
}

// setupLogger configures the global slog logger.
func setupLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: logLevel})
	}

	slog.SetDefault(slog.New(handler))
}
