package admin

import (
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
)

// getJuryScoreboard serves the restricted perspective: frozen results and
// invisible teams included.
func (h *Handler) getJuryScoreboard(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}
	visibleOnly := c.Query("visible_only") == "true"
	board, err := h.svc.GetScoreboard(uint(cid), true, nil, visibleOnly)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}
	util.Success(c, gin.H{
		"contest_id": board.Contest.CID,
		"frozen":     board.Freeze.ShowFrozen(),
		"progress":   board.Freeze.Progress(),
		"rows":       board.Rows(h.cfg.Scoring.ScoreInSeconds),
		"summary":    board.Summary,
	}, "jury scoreboard retrieved")
}

func (h *Handler) getJuryTeamScoreboard(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}
	teamID, err := strconv.ParseUint(c.Param("teamid"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid team id")
		return
	}
	board, err := h.svc.GetTeamScoreboard(uint(cid), uint(teamID), true)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}
	util.Success(c, board.Rows(h.cfg.Scoring.ScoreInSeconds), "jury team scoreboard retrieved")
}

// refreshScoreboard rebuilds the score and rank caches for a contest from
// scratch.
func (h *Handler) refreshScoreboard(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}
	contest, err := database.GetContest(h.db, uint(cid))
	if err != nil {
		util.Error(c, http.StatusNotFound, "contest not found")
		return
	}
	if err := h.svc.RefreshCache(contest); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "scoreboard cache refreshed")
}
