package admin

import (
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) createContest(c *gin.Context) {
	var contest models.Contest
	if err := c.ShouldBindJSON(&contest); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if contest.ExternalID == "" {
		contest.ExternalID = uuid.New().String()
	}
	if contest.PenaltyTime == 0 {
		contest.PenaltyTime = h.cfg.Scoring.PenaltyTime
	}
	if contest.ScoreboardType == "" {
		contest.ScoreboardType = models.ScoreboardTypePassFail
	}
	if err := database.CreateContest(h.db, &contest); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contest, "contest created")
}

func (h *Handler) updateContest(c *gin.Context) {
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
	if err := c.ShouldBindJSON(contest); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	contest.CID = uint(cid)
	if err := database.UpdateContest(h.db, contest); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contest, "contest updated")
}

func (h *Handler) createCategory(c *gin.Context) {
	var category models.TeamCategory
	if err := c.ShouldBindJSON(&category); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := h.db.Create(&category).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, category, "category created")
}

func (h *Handler) createAffiliation(c *gin.Context) {
	var affiliation models.TeamAffiliation
	if err := c.ShouldBindJSON(&affiliation); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := h.db.Create(&affiliation).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, affiliation, "affiliation created")
}

func (h *Handler) createTeam(c *gin.Context) {
	var team models.Team
	if err := c.ShouldBindJSON(&team); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := database.CreateTeam(h.db, &team); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, team, "team created")
}

func (h *Handler) createProblem(c *gin.Context) {
	var problem models.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := database.CreateProblem(h.db, &problem); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problem, "problem created")
}

func (h *Handler) addContestProblem(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}
	var cp models.ContestProblem
	if err := c.ShouldBindJSON(&cp); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	cp.CID = uint(cid)
	if cp.Points == 0 {
		cp.Points = 1
	}
	if err := database.CreateContestProblem(h.db, &cp); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, cp, "contest problem added")
}

// addContestTeam registers a team for a contest that is not open to all
// teams.
func (h *Handler) addContestTeam(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid contest id")
		return
	}
	var ct models.ContestTeam
	if err := c.ShouldBindJSON(&ct); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	ct.CID = uint(cid)
	if err := database.CreateContestTeam(h.db, &ct); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, ct, "contest team added")
}

func (h *Handler) createTestcaseGroup(c *gin.Context) {
	var group models.TestcaseGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if group.Aggregation == "" {
		group.Aggregation = models.AggregationSum
	}
	if err := database.CreateTestcaseGroup(h.db, &group); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, group, "testcase group created")
}

func (h *Handler) createTestcase(c *gin.Context) {
	var testcase models.Testcase
	if err := c.ShouldBindJSON(&testcase); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if err := database.CreateTestcase(h.db, &testcase); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, testcase, "testcase created")
}
