package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dkezele/ripple/internal/config"
	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/docstore/memory"
	"github.com/dkezele/ripple/internal/docstore/postgres"
	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/internal/service"
	"github.com/dkezele/ripple/internal/transport/http/handlers"
	"github.com/dkezele/ripple/internal/transport/http/middleware"
	"github.com/dkezele/ripple/internal/transport/ws"
)

// logToaster writes transient notices to the server log; browser clients
// render their own toasts from API responses.
type logToaster struct{}

func (logToaster) Toast(message string) {
	log.Printf("toast: %s", message)
}

// presenceTouch refreshes a user's last-active timestamp on connection
// lifecycle, which is what the 3-minute online window is computed from.
type presenceTouch struct {
	users *service.UserService
}

func (p presenceTouch) OnConnect(userID string) {
	if err := p.users.Touch(context.Background(), userID); err != nil {
		log.Printf("presence: touching %s: %v", userID, err)
	}
}

func (p presenceTouch) OnDisconnect(userID string) {
	if err := p.users.Touch(context.Background(), userID); err != nil {
		log.Printf("presence: touching %s: %v", userID, err)
	}
}

// seedDefaultChannel makes sure the "general" channel exists under its
// well-known id so fresh deployments have a landing spot. Both creates are
// idempotent across restarts and replicas.
func seedDefaultChannel(ctx context.Context, store docstore.Store) {
	err := store.Create(ctx, docstore.ChannelNamePath("general"), map[string]any{
		"channel_id": "general",
		"name":       "general",
	})
	if err != nil && !errors.Is(err, docstore.ErrExists) {
		log.Printf("seeding general channel name: %v", err)
		return
	}
	err = store.Create(ctx, docstore.ChannelPath("general"), &domain.Channel{
		ID:          "general",
		Name:        "general",
		Description: "Team-wide chatter",
		CreatedAt:   domain.Now(),
	})
	if err != nil && !errors.Is(err, docstore.ErrExists) {
		log.Printf("seeding general channel: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Store
	var store docstore.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		store = pg
		log.Println("Connected to database")
	} else {
		mem := memory.New()
		defer mem.Close()
		store = mem
		log.Println("Using in-memory store")
	}

	seedDefaultChannel(context.Background(), store)

	// Services
	authService := service.NewAuthService(store, cfg.JWTSecret)
	authService.SetToaster(logToaster{})
	userService := service.NewUserService(store)
	userService.SetToaster(logToaster{})
	channelService := service.NewChannelService(store)
	dmService := service.NewDMService(store)

	// Real-time gateway
	hub := ws.NewHub()
	bridge := ws.NewSnapshotBridge(store, hub)
	defer bridge.Close()
	hub.SetSource(bridge)
	hub.SetPresence(presenceTouch{users: userService})

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	channelHandler := handlers.NewChannelHandler(channelService)
	dmHandler := handlers.NewDMHandler(dmService)
	messageHandler := handlers.NewMessageHandler(store, channelService, dmService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/reset/request", authHandler.RequestPasswordReset)
	mux.HandleFunc("POST /api/v1/auth/reset", authHandler.ResetPassword)

	// Protected - Users
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(userHandler.List)))
	mux.Handle("POST /api/v1/users/me/heartbeat", auth(http.HandlerFunc(userHandler.Heartbeat)))
	mux.Handle("PATCH /api/v1/users/me", auth(http.HandlerFunc(userHandler.UpdateProfile)))

	// Protected - Channels
	mux.Handle("GET /api/v1/channels", auth(http.HandlerFunc(channelHandler.List)))
	mux.Handle("POST /api/v1/channels", auth(http.HandlerFunc(channelHandler.Create)))
	mux.Handle("GET /api/v1/channels/{id}", auth(http.HandlerFunc(channelHandler.Get)))
	mux.Handle("PATCH /api/v1/channels/{id}", auth(http.HandlerFunc(channelHandler.UpdateDescription)))
	mux.Handle("POST /api/v1/channels/{id}/join", auth(http.HandlerFunc(channelHandler.Join)))
	mux.Handle("POST /api/v1/channels/{id}/leave", auth(http.HandlerFunc(channelHandler.Leave)))

	// Protected - Conversations
	mux.Handle("GET /api/v1/conversations", auth(http.HandlerFunc(dmHandler.List)))
	mux.Handle("POST /api/v1/conversations", auth(http.HandlerFunc(dmHandler.Open)))

	// Protected - Messages and threads, addressed by context path
	mux.Handle("GET /api/v1/{kind}/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/v1/{kind}/{id}/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("PATCH /api/v1/{kind}/{id}/messages/{messageID}", auth(http.HandlerFunc(messageHandler.Edit)))
	mux.Handle("DELETE /api/v1/{kind}/{id}/messages/{messageID}", auth(http.HandlerFunc(messageHandler.Delete)))
	mux.Handle("POST /api/v1/{kind}/{id}/messages/{messageID}/reactions", auth(http.HandlerFunc(messageHandler.ToggleReaction)))
	mux.Handle("GET /api/v1/{kind}/{id}/messages/{messageID}/thread", auth(http.HandlerFunc(messageHandler.ListReplies)))
	mux.Handle("POST /api/v1/{kind}/{id}/messages/{messageID}/thread", auth(http.HandlerFunc(messageHandler.SendReply)))
	mux.Handle("PATCH /api/v1/{kind}/{id}/messages/{messageID}/thread/{replyID}", auth(http.HandlerFunc(messageHandler.EditReply)))
	mux.Handle("DELETE /api/v1/{kind}/{id}/messages/{messageID}/thread/{replyID}", auth(http.HandlerFunc(messageHandler.DeleteReply)))
	mux.Handle("POST /api/v1/{kind}/{id}/messages/{messageID}/thread/{replyID}/reactions", auth(http.HandlerFunc(messageHandler.ToggleReplyReaction)))

	// Live snapshot gateway
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: middleware.CORS(mux)}

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		return server.ListenAndServe()
	})
	log.Fatal(g.Wait())
}
