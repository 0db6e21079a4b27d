package public

import (
	"net/http"
	"strconv"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) getAllContests(c *gin.Context) {
	contests, err := database.GetAllContests(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contests, "contests retrieved")
}

func (h *Handler) getContest(c *gin.Context) {
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
	util.Success(c, contest, "contest retrieved")
}
