package admin

import (
	"github.com/DOMjudge/scorekeeper/internal/api"
	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter creates and configures the jury Gin engine.
func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	svc *scoreboard.Service,
	broker *pubsub.Broker) *gin.Engine {

	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, svc, broker)

	v1 := r.Group("/api/v1")
	v1.POST("/login", h.login)

	authed := v1.Group("")
	authed.Use(api.AuthMiddleware(cfg.Auth.JWT.Secret))
	{
		// Contest setup
		contests := authed.Group("/contests")
		{
			contests.POST("", h.createContest)
			contests.PUT("/:id", h.updateContest)
			contests.GET("/:id/scoreboard", h.getJuryScoreboard)
			contests.GET("/:id/teams/:teamid/scoreboard", h.getJuryTeamScoreboard)
			contests.POST("/:id/refresh-scoreboard", h.refreshScoreboard)
			contests.POST("/:id/problems", h.addContestProblem)
			contests.POST("/:id/teams", h.addContestTeam)
		}

		authed.POST("/categories", h.createCategory)
		authed.POST("/affiliations", h.createAffiliation)
		authed.POST("/teams", h.createTeam)
		authed.POST("/teams/:id/token", h.issueTeamToken)
		authed.POST("/problems", h.createProblem)
		authed.POST("/testcase-groups", h.createTestcaseGroup)
		authed.POST("/testcases", h.createTestcase)

		// Judging ingest
		authed.POST("/submissions", h.createSubmission)
		authed.PATCH("/submissions/:id/validity", h.updateSubmissionValidity)
		authed.POST("/judgings", h.applyJudging)
		authed.POST("/judgings/:id/invalidate", h.invalidateJudging)
	}

	return r
}
