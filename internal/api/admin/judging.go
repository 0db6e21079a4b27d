package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) createSubmission(c *gin.Context) {
	var submission models.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	submission.Valid = true
	if err := database.CreateSubmission(h.db, &submission); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, submission, "submission created")
}

type validityRequest struct {
	Valid *bool `json:"valid" binding:"required"`
}

func (h *Handler) updateSubmissionValidity(c *gin.Context) {
	submitID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid submission id")
		return
	}
	var req validityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.InvalidateSubmission(uint(submitID), *req.Valid); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "submission validity updated")
}

type judgingRequest struct {
	SubmitID   uint                `json:"submit_id" binding:"required"`
	Result     *string             `json:"result"`
	Verified   bool                `json:"verified"`
	Score      *string             `json:"score"`
	JuryMember string              `json:"jury_member"`
	StartTime  float64             `json:"start_time"`
	EndTime    float64             `json:"end_time"`
	Runs       []models.JudgingRun `json:"runs"`
}

// applyJudging ingests a completed judging as reported by a judgehost and
// triggers the incremental cache update.
func (h *Handler) applyJudging(c *gin.Context) {
	var req judgingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	judging := &models.Judging{
		SubmitID:   req.SubmitID,
		Result:     req.Result,
		Verified:   req.Verified,
		Score:      req.Score,
		JuryMember: req.JuryMember,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	if err := h.svc.ApplyJudging(judging, req.Runs); err != nil {
		if errors.Is(err, scoreboard.ErrContestFinalized) {
			util.Error(c, http.StatusConflict, err)
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, judging, "judging applied")
}

func (h *Handler) invalidateJudging(c *gin.Context) {
	judgingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid judging id")
		return
	}
	if err := h.svc.InvalidateJudging(uint(judgingID)); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "judging invalidated")
}
