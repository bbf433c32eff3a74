package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/abhisamaya/therapy-bro/internal/auth"
	"github.com/abhisamaya/therapy-bro/internal/config"
	"github.com/abhisamaya/therapy-bro/internal/llm"
	"github.com/abhisamaya/therapy-bro/internal/session"
	"github.com/abhisamaya/therapy-bro/internal/user"
	"github.com/abhisamaya/therapy-bro/internal/wallet"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	config *config.Config
	http   *http.Server
}

func New(database *sqlx.DB, cfg *config.Config, streamer llm.Streamer, finalizer session.Finalizer) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	walletRepo := wallet.NewRepository(database, cfg.InitialWalletBalance, cfg.WalletCurrency)
	sessionRepo := session.NewRepository(database)

	userService := user.NewService(user.NewRepository(database), walletRepo, cfg.JWTSecret)
	sessionService := session.NewService(sessionRepo, walletRepo, finalizer, cfg.FreeSessionSeconds, cfg.PricePerMinute)

	userHandler := user.NewHandler(userService)
	walletHandler := wallet.NewHandler(database, cfg.InitialWalletBalance, cfg.WalletCurrency)
	sessionHandler := session.NewHandler(sessionService, streamer)

	public := router.Group("/auth")
	public.Use(RateLimitMiddleware(5, 10))
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
	}

	protected := router.Group("/api")
	protected.Use(auth.AuthMiddleware(cfg.JWTSecret))
	{
		protected.GET("/me", userHandler.Me)

		protected.GET("/wallet", walletHandler.GetBalance)
		protected.POST("/wallet", walletHandler.CreateWallet)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.POST("/sessions", sessionHandler.StartSession)
		protected.GET("/sessions/:sessionID", sessionHandler.GetHistory)
		protected.DELETE("/sessions/:sessionID", sessionHandler.DeleteSession)
		protected.PUT("/sessions/:sessionID/notes", sessionHandler.UpdateNotes)
		protected.POST("/sessions/:sessionID/extend", sessionHandler.ExtendSession)
		protected.POST("/sessions/:sessionID/messages", sessionHandler.SendMessage)
		protected.GET("/chats", sessionHandler.ListConversations)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())

	return &Server{
		router: router,
		db:     database,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
