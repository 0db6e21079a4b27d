package public

import (
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
)

// ScoreboardResponse is the wire form of a computed scoreboard.
type ScoreboardResponse struct {
	ContestID uint              `json:"contest_id"`
	Frozen    bool              `json:"frozen"`
	Final     bool              `json:"final"`
	Progress  int               `json:"progress"`
	Rows      []scoreboard.Row  `json:"rows"`
	Summary   *scoreboard.Summary `json:"summary,omitempty"`
}

func parseFilter(c *gin.Context) *scoreboard.Filter {
	filter := &scoreboard.Filter{
		Countries: c.QueryArray("country"),
	}
	for _, raw := range c.QueryArray("affiliation") {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filter.Affiliations = append(filter.Affiliations, uint(id))
		}
	}
	for _, raw := range c.QueryArray("category") {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filter.Categories = append(filter.Categories, uint(id))
		}
	}
	for _, raw := range c.QueryArray("team") {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filter.Teams = append(filter.Teams, uint(id))
		}
	}
	return filter
}

func (h *Handler) getScoreboard(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}

	board, err := h.svc.GetScoreboard(uint(cid), false, parseFilter(c), false)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}
	util.Success(c, scoreboardResponse(board, h.cfg.Scoring.ScoreInSeconds, true), "scoreboard retrieved")
}

func (h *Handler) getTeamScoreboard(c *gin.Context) {
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
	if c.GetString("role") != "admin" && c.GetString("subject") != c.Param("teamid") {
		util.Error(c, http.StatusForbidden, "not your scoreboard")
		return
	}

	// FTS stays hidden during the freeze on the team-facing view.
	board, err := h.svc.GetTeamScoreboard(uint(cid), uint(teamID), false)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}
	util.Success(c, scoreboardResponse(board, h.cfg.Scoring.ScoreInSeconds, false), "team scoreboard retrieved")
}

func scoreboardResponse(board *scoreboard.Scoreboard, scoreInSeconds, withSummary bool) ScoreboardResponse {
	resp := ScoreboardResponse{
		ContestID: board.Contest.CID,
		Frozen:    board.Freeze.ShowFrozen(),
		Final:     board.Freeze.ShowFinal(board.Restricted),
		Progress:  board.Freeze.Progress(),
		Rows:      board.Rows(scoreInSeconds),
	}
	if withSummary {
		resp.Summary = board.Summary
	}
	return resp
}
