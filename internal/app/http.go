package app

import (
	"context"

	"github.com/liamba05/Fynnance/internal/auth/bearer"
	"github.com/liamba05/Fynnance/internal/auth/credentials"
	"github.com/liamba05/Fynnance/internal/auth/handler"
	"github.com/liamba05/Fynnance/internal/auth/provider"
	"github.com/liamba05/Fynnance/internal/auth/provider/google"
	"github.com/liamba05/Fynnance/internal/auth/resolver"
	"github.com/liamba05/Fynnance/internal/bank"
	"github.com/liamba05/Fynnance/internal/chat"
	"github.com/liamba05/Fynnance/internal/config"
	"github.com/liamba05/Fynnance/internal/logger"
	"github.com/liamba05/Fynnance/internal/middleware"
	"github.com/liamba05/Fynnance/internal/profile"
	"github.com/liamba05/Fynnance/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	identityResolver := resolver.NewDBResolver(infra.DB)
	profileStore := profile.NewStore(infra.DB)
	credentialService := credentials.NewService(infra.DB, profileStore)

	googleProvider, err := google.New(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
	)
	if err != nil {
		return nil, nil, err
	}

	registry := provider.NewRegistry(googleProvider)

	logger.Info("oauth providers configured", map[string]any{
		"providers": registry.Names(),
	})

	authHandler := handler.NewHandler(
		registry,
		sessionStore,
		identityResolver,
		credentialService,
		profileStore,
	)

	bearerVerifier := bearer.NewVerifier(
		googleProvider.IDTokenVerifier(),
		googleProvider.Name(),
		identityResolver,
	)

	bankClient, err := bank.NewClient(
		cfg.PlaidBaseURL,
		cfg.PlaidClientID,
		cfg.PlaidSecret,
		cfg.PlaidRedirectURI,
		cfg.HTTPTimeout,
	)
	if err != nil {
		return nil, nil, err
	}
	itemStore := bank.NewItemStore(infra.DB)
	financialProfiles := bank.NewProfileService(bankClient, itemStore)
	bankHandler := bank.NewHandler(bankClient, itemStore, financialProfiles)

	upstream := chat.NewUpstream(
		cfg.ChatUpstreamURL,
		cfg.ChatUpstreamKey,
		cfg.ChatModel,
		cfg.HTTPTimeout,
	)
	chatHandler := chat.NewHandler(upstream, profileStore, financialProfiles)

	profileHandler := profile.NewHandler(profileStore)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Bearer-Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireBearer(bearerVerifier))

	bankHandler.RegisterRoutes(api)
	profileHandler.RegisterRoutes(api)
	chatHandler.RegisterRoutes(api)

	// ----------------------------
	// Session-Protected Web Routes
	// ----------------------------

	web := router.Group("/web")
	web.Use(middleware.GinRequireAuth(authMiddleware))

	web.GET("/me", func(c *gin.Context) {
		userID, _ := middleware.UserIDFromContext(c.Request.Context())
		c.JSON(200, gin.H{
			"user_id": userID,
		})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}
