package admin

import (
	"net/http"

	"github.com/DOMjudge/scorekeeper/internal/auth"
	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the jury API handlers.
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

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if req.Username != h.cfg.Admin.Username ||
		!auth.CheckPasswordHash(req.Password, h.cfg.Admin.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(req.Username, "admin",
		h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, gin.H{"token": token}, "login successful")
}

// issueTeamToken mints a token a team can use for its own restricted
// scoreboard view.
func (h *Handler) issueTeamToken(c *gin.Context) {
	teamID := c.Param("id")
	token, err := auth.GenerateJWT(teamID, "team",
		h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, gin.H{"token": token}, "team token issued")
}
