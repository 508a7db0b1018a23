package main

import (
	"net/http"

	"github.com/ruslan-synytsia/chat-ws-api/config"
	"github.com/ruslan-synytsia/chat-ws-api/internal/db"
	"github.com/ruslan-synytsia/chat-ws-api/internal/ledger"
	"github.com/ruslan-synytsia/chat-ws-api/internal/middlewares"
	"github.com/ruslan-synytsia/chat-ws-api/internal/realtime"
	"github.com/ruslan-synytsia/chat-ws-api/internal/repository"
	"github.com/ruslan-synytsia/chat-ws-api/internal/services"
	"github.com/ruslan-synytsia/chat-ws-api/pkg/log"

	muxHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load config and init systems
	cfg := config.LoadConfig()
	log.InitLogger()

	// DB init
	db.InitDB(cfg)

	// Router & CORS
	r := mux.NewRouter()
	cors := muxHandlers.CORS(
		muxHandlers.AllowedOrigins([]string{cfg.ClientURL}),
		muxHandlers.AllowedMethods([]string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete,
		}),
		muxHandlers.AllowedHeaders([]string{"Content-Type"}),
		muxHandlers.AllowCredentials(),
	)

	// Core repos/services/registry
	messageRepo := repository.NewMessageRepo(db.DB)
	roomRepo := repository.NewRoomRepo(db.DB)
	chatSvc := services.NewChatService(messageRepo)
	roomSvc := services.NewRoomService(roomRepo)
	registry := realtime.NewRegistry()
	unread := ledger.New()
	dispatcher := services.NewDispatcher(registry, unread, roomSvc, chatSvc)

	// Health & metrics
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Realtime endpoint
	r.Handle("/ws", realtime.Handler(cfg.SendBufferSize, dispatcher.Dispatch, dispatcher.Disconnected)).Methods("GET")

	r.Use(middlewares.PrometheusMetricsMiddleware)

	log.Logger.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("Server starting")
	if err := http.ListenAndServe(":"+cfg.Port, cors(r)); err != nil {
		log.Logger.Fatal().Err(err).Msg("Server stopped")
	}
}
