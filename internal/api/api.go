// Package api serves the reporting HTTP surface: voyagers read their own
// committed accounts, guild members pull the weekly rollup. Discord OAuth
// backs authentication, same identity as the bot.
package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/astralship/energybot/internal/config"
	"github.com/astralship/energybot/internal/db"
	"github.com/astralship/energybot/internal/ledger"
)

type API struct {
	router      *mux.Router
	db          *db.DB
	ledger      ledger.Gateway
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, database *db.DB, gateway ledger.Gateway) *API {
	api := &API{
		router:    mux.NewRouter(),
		db:        database,
		ledger:    gateway,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/health", a.handleHealth).Methods("GET")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/user/guilds", a.handleUserGuilds).Methods("GET")
	protected.HandleFunc("/voyagers/{voyager_id}/accounts", a.handleVoyagerAccounts).Methods("GET")
	protected.HandleFunc("/guilds/{guild_id}/report", a.handleGuildReport).Methods("GET")
	protected.HandleFunc("/guilds/{guild_id}/categories", a.handleListCategories).Methods("GET")
	protected.HandleFunc("/guilds/{guild_id}/categories", a.handleAddCategory).Methods("POST")
	protected.HandleFunc("/guilds/{guild_id}/categories/{name}", a.handleRemoveCategory).Methods("DELETE")
}

func (a *API) Start() error {
	// Setup CORS - allow all origins for development, restrict in production
	// Note: When AllowedOrigins is "*", AllowCredentials must be false for security
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false, // Set to false for security when using wildcard origin
	}

	handler := cors.New(corsOptions).Handler(a.router)

	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, handler)
}
