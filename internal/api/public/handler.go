package public

import (
	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the public API handlers.
type Handler struct {
	cfg    *config.Config
	db     *gorm.DB
	svc    *scoreboard.Service
	broker *pubsub.Broker
}

func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	svc *scoreboard.Service,
	broker *pubsub.Broker,
) *Handler {
	return &Handler{
		cfg:    cfg,
		db:     db,
		svc:    svc,
		broker: broker,
	}
}
