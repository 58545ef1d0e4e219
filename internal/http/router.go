// README: HTTP router registration.
package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"kilap/internal/config"
	"kilap/internal/http/handlers"
	"kilap/internal/http/middleware"
	"kilap/internal/modules/account"
	"kilap/internal/modules/catalog"
	"kilap/internal/modules/order"
	"kilap/internal/modules/payment"
	"kilap/internal/modules/stage"
	"kilap/internal/storage"
)

type RouterDeps struct {
	Accounts *account.Service
	Orders   *order.Service
	Stages   *stage.Service
	Payments *payment.Service
	Catalog  *catalog.Store
	Photos   storage.Store
	Redis    *redis.Client
	Config   *config.Config
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	authHandler := handlers.NewAuthHandler(deps.Accounts)
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Payments, deps.Catalog)
	staffHandler := handlers.NewStaffHandler(deps.Orders, deps.Stages)
	webhookHandler := handlers.NewWebhookHandler(deps.Payments)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register",
		middleware.RateLimit(deps.Redis, "register", deps.Config.RateLimit.RegisterPerHour, time.Hour,
			middleware.JSONField("email")),
		authHandler.Register)
	r.POST("/auth/login", authHandler.Login)

	r.POST("/payments/notification",
		middleware.RateLimit(deps.Redis, "payment", deps.Config.RateLimit.PaymentPerHour, time.Hour,
			middleware.JSONField("order_id")),
		webhookHandler.Notification)

	r.GET("/services", orderHandler.Services)

	authed := r.Group("/", middleware.Auth(deps.Accounts))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/order", orderHandler.Create)
	authed.GET("/orders", orderHandler.List)
	authed.GET("/orders/:number", orderHandler.Detail)
	authed.GET("/orders/:number/status", orderHandler.Status)
	authed.GET("/orders/:number/payment/:phase", orderHandler.Payment)

	staff := authed.Group("/staff", middleware.RequireStaff(), middleware.LockGate(deps.Stages))
	staff.GET("/tasks", staffHandler.Tasks)
	staff.POST("/orders", staffHandler.CreateOffline)
	staff.GET("/:slug/:number", staffHandler.StageDetail)
	staff.POST("/:slug/:number", staffHandler.Claim)
	staff.POST("/:slug/:number/complete", staffHandler.Complete)
	staff.POST("/:slug/:number/cancel", staffHandler.Cancel)
	staff.POST("/process/:number/complete", staffHandler.ProcessComplete)
	staff.GET("/photos/*path", servePhoto(deps.Photos))

	return r
}

// servePhoto streams a stage evidence photo out of the blob store, fs or s3
// alike.
func servePhoto(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Param("path")
		rc, err := store.Open(c.Request.Context(), p)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		defer rc.Close()

		ct := mime.TypeByExtension(path.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Header("Content-Type", ct)
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, rc)
	}
}
