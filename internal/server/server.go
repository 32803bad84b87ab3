package server

import (
	"context"
	"net/http"

	"belta/internal/auth"
	"belta/internal/config"
	"belta/internal/course"
	"belta/internal/email"
	"belta/internal/events"
	"belta/internal/payment"
	"belta/internal/payout"
	"belta/internal/purchase"
	"belta/internal/refund"
	"belta/internal/settings"
	"belta/internal/user"
	"belta/internal/wallet"
	"belta/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	email  *email.Service
}

func New(db *sqlx.DB, cfg *config.Config, emailService *email.Service, publisher *events.Publisher) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	cardPay := payment.NewCardPayClient(cfg.CardPayBaseURL, cfg.CardPayAPIKey)
	payMail := payment.NewPayMailClient(cfg.PayMailBaseURL, cfg.PayMailClientID, cfg.PayMailSecret)

	userRepo := user.NewRepository(db)
	courseRepo := course.NewRepository(db)
	settingsRepo := settings.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db)
	refundRepo := refund.NewRepository(db)
	payoutRepo := payout.NewRepository(db)

	purchaseService := purchase.NewService(purchaseRepo, courseRepo, userRepo, settingsRepo,
		cardPay, emailService, publisher, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	refundService := refund.NewService(refundRepo, purchaseRepo, courseRepo, userRepo,
		settingsRepo, cardPay, emailService, publisher)
	payoutService := payout.NewService(payoutRepo, walletRepo, userRepo, settingsRepo,
		cardPay, payMail, emailService, publisher)

	userHandler := user.NewHandler(db, cfg.JWTSecret)
	courseHandler := course.NewHandler(db)
	settingsHandler := settings.NewHandler(db)
	walletHandler := wallet.NewHandler(db)
	purchaseHandler := purchase.NewHandler(purchaseService)
	refundHandler := refund.NewHandler(refundService)
	payoutHandler := payout.NewHandler(payoutService)
	webhookHandler := webhook.NewHandler(purchaseService, payoutService, cardPay, payMail,
		cfg.CardPayWebhookSecret, cfg.PayMailWebhookSecret)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	// Providers authenticate with signatures, not bearer tokens.
	hooks := router.Group("/webhooks")
	{
		hooks.POST("/cardpay", webhookHandler.HandleCardPay)
		hooks.POST("/paymail", webhookHandler.HandlePayMail)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.PUT("/me/payout-email", userHandler.UpdatePayoutEmail)

		protected.GET("/courses", courseHandler.ListCourses)
		protected.GET("/courses/:id", courseHandler.GetCourse)
		protected.GET("/owned-courses", purchaseHandler.ListOwned)
		protected.POST("/courses/:id/purchase", purchaseHandler.InitiatePurchase)
		protected.GET("/purchases", purchaseHandler.ListMyPurchases)

		protected.POST("/refunds", refundHandler.RequestRefund)
		protected.GET("/refunds", refundHandler.ListMyRefunds)
	}

	teacherMiddleware := auth.RequireRole(auth.RoleTeacher)
	teacher := router.Group("/teacher")
	teacher.Use(authMiddleware, teacherMiddleware)
	{
		teacher.POST("/courses", courseHandler.CreateCourse)
		teacher.GET("/courses", courseHandler.ListMyCourses)
		teacher.POST("/courses/:id/publish", courseHandler.PublishCourse)
		teacher.POST("/courses/:id/archive", courseHandler.ArchiveCourse)

		teacher.GET("/wallet", walletHandler.GetBalance)
		teacher.GET("/wallet/entries", walletHandler.ListEntries)

		teacher.POST("/payouts", payoutHandler.CreatePayout)
		teacher.GET("/payouts", payoutHandler.ListMyWithdraws)
		teacher.GET("/payouts/:id", payoutHandler.GetWithdraw)
		teacher.POST("/payouts/:id/sync", payoutHandler.SyncWithdraw)
	}

	adminMiddleware := auth.RequireRole(auth.RoleAdmin)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("/settings", settingsHandler.GetSettings)
		admin.PUT("/settings", settingsHandler.UpdateSettings)

		admin.GET("/refunds", refundHandler.ListWaiting)
		admin.POST("/refunds/:id/review", refundHandler.ReviewRefund)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-email", TestEmail(emailService))
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		email:  emailService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
