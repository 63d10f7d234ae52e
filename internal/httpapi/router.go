package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/streamlate/streamlate/internal/common"
	"github.com/streamlate/streamlate/internal/config"
	"github.com/streamlate/streamlate/internal/httpapi/handlers"
	"github.com/streamlate/streamlate/internal/httpapi/middleware"
	"github.com/streamlate/streamlate/internal/store/rabbitmq"
	"github.com/streamlate/streamlate/internal/translate"
)

func NewRouter(db *gorm.DB, cfg config.Config, cache translate.Cache, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, cache, pub)

	r.GET("/ping", h.Ping)

	// users
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Translation (JWT required)
	authGroup.GET("/models", h.ListModels)
	authGroup.POST("/translations", h.Translate)
	authGroup.POST("/translations/stream", h.TranslateStream)
	authGroup.POST("/translations/async", h.TranslateAsync)
	authGroup.GET("/translations/jobs/:job_id", h.GetJob)
	authGroup.GET("/translations", h.ListTranslations)

	return r
}
