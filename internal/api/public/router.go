package public

import (
	"github.com/DOMjudge/scorekeeper/internal/api"
	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter creates and configures the public Gin engine.
func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	svc *scoreboard.Service,
	broker *pubsub.Broker) *gin.Engine {

	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, svc, broker)

	v1 := r.Group("/api/v1")
	{
		// Websocket scoreboard stream
		v1.GET("/ws/contests/:id/scoreboard", h.handleScoreboardWs)

		v1.GET("/contests", h.getAllContests)
		v1.GET("/contests/:id", h.getContest)
		v1.GET("/contests/:id/scoreboard", h.getScoreboard)

		// The single-team board carries restricted detail, so it requires
		// a token for that team.
		v1.GET("/contests/:id/teams/:teamid/scoreboard",
			api.AuthMiddleware(cfg.Auth.JWT.Secret), h.getTeamScoreboard)
	}

	return r
}
