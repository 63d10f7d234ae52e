package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/streamlate/streamlate/internal/common"
	"github.com/streamlate/streamlate/internal/config"
	"github.com/streamlate/streamlate/internal/httpapi/middleware"
	"github.com/streamlate/streamlate/internal/ollama"
	"github.com/streamlate/streamlate/internal/store/rabbitmq"
	"github.com/streamlate/streamlate/internal/translate"
)

type Handler struct {
	DB     *gorm.DB
	Cfg    config.Config
	Svc    *translate.Service
	Rabbit *rabbitmq.Publisher
}

// NewHandler wires the Ollama client, translate service, and queue publisher.
// cache and pub may be nil; the corresponding features degrade gracefully.
func NewHandler(db *gorm.DB, cfg config.Config, cache translate.Cache, pub *rabbitmq.Publisher) *Handler {
	repo := translate.NewRepo(db)
	client := ollama.NewClient(cfg.OllamaBaseURL)
	svc := translate.NewService(repo, client, cache, cfg.OllamaModel, cfg.PromptTemplate, cfg.FlushInterval)
	return &Handler{DB: db, Cfg: cfg, Svc: svc, Rabbit: pub}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
