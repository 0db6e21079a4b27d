package scoreboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
)

// Filter narrows a scoreboard to a subset of teams. Empty fields filter
// nothing.
type Filter struct {
	Affiliations []uint   `form:"affiliations" json:"affiliations"`
	Countries    []string `form:"countries" json:"countries"`
	Categories   []uint   `form:"categories" json:"categories"`
	Teams        []uint   `form:"teams" json:"teams"`
}

// TeamScore is one team's aggregate line on the scoreboard.
type TeamScore struct {
	Team         *models.Team
	Rank         int
	NumPoints    int
	TotalTime    int
	TotalRuntime int
	Score        string

	sortKey string
}

// MatrixItem is one team×problem cell.
type MatrixItem struct {
	IsCorrect      bool
	IsFirst        bool
	NumSubmissions int
	NumPending     int
	Time           float64
	PenaltyTime    int
	Runtime        int
	// Score is the cell's points: the best partial score for scoring
	// problems, the problem's point value (or 0) otherwise.
	Score string
}

// ProblemSummary aggregates one problem's column, keyed by category sort
// order.
type ProblemSummary struct {
	NumSubmissions map[int]int     `json:"num_submissions"`
	NumPending     map[int]int     `json:"num_pending"`
	NumSolved      map[int]int     `json:"num_solved"`
	BestTime       map[int]float64 `json:"best_time"`
	BestRuntime    map[int]int     `json:"best_runtime"`
}

func newProblemSummary() *ProblemSummary {
	return &ProblemSummary{
		NumSubmissions: map[int]int{},
		NumPending:     map[int]int{},
		NumSolved:      map[int]int{},
		BestTime:       map[int]float64{},
		BestRuntime:    map[int]int{},
	}
}

// Summary is the bottom row of the scoreboard.
type Summary struct {
	NumPoints    map[int]int              `json:"num_points"`
	Affiliations map[uint]int             `json:"affiliations"`
	Countries    map[string]int           `json:"countries"`
	Problems     map[uint]*ProblemSummary `json:"problems"`
}

// Scoreboard is a fully computed scoreboard for one contest and one
// perspective.
type Scoreboard struct {
	Contest    *models.Contest
	Freeze     *FreezeData
	Restricted bool

	Problems []models.ContestProblem
	// Scores holds the ranked team lines in display order.
	Scores []*TeamScore
	// Matrix is keyed by team then problem.
	Matrix  map[uint]map[uint]*MatrixItem
	Summary *Summary
}

// GetScoreboard builds the scoreboard of a contest from the caches. Jury
// callers get the restricted perspective and see invisible teams, unless
// they ask for the visible-only projection; the public gets the frozen
// perspective until the unfreeze.
func (s *Service) GetScoreboard(cid uint, jury bool, filter *Filter, visibleOnly bool) (*Scoreboard, error) {
	contest, err := database.GetContest(s.db, cid)
	if err != nil {
		return nil, fmt.Errorf("load contest %d: %w", cid, err)
	}
	freeze := NewFreezeData(contest, s.Now())
	restricted := jury || freeze.ShowFinal(false)

	if filter == nil {
		filter = &Filter{}
	}
	teams, err := database.GetScoreboardTeams(s.db, contest, jury && !visibleOnly,
		filter.Affiliations, filter.Countries, filter.Categories, filter.Teams)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	problems, err := database.GetContestProblems(s.db, cid, true)
	if err != nil {
		return nil, fmt.Errorf("load problems: %w", err)
	}

	var scoreCache []models.ScoreCache
	var rankCache []models.RankCache
	// Before the start the public sees an empty scoreboard, not the
	// pre-contest cache contents.
	if freeze.Started() || jury {
		if scoreCache, err = database.GetScoreCache(s.db, cid, nil); err != nil {
			return nil, fmt.Errorf("load score cache: %w", err)
		}
		if rankCache, err = database.GetRankCache(s.db, cid, nil); err != nil {
			return nil, fmt.Errorf("load rank cache: %w", err)
		}
	}

	return buildScoreboard(contest, freeze, restricted, restricted,
		teams, problems, scoreCache, rankCache, s.cfg.ScoreInSeconds), nil
}

// GetTeamScoreboard builds the single-row scoreboard for one team. The row
// always carries the restricted detail, so a team sees its own in-freeze
// judged results; callers must make sure the team is allowed to. Only the
// first-to-solve column stays hidden during the freeze unless
// showFtsInFreeze is set. The rank is computed against the full restricted
// field.
func (s *Service) GetTeamScoreboard(cid, teamID uint, showFtsInFreeze bool) (*Scoreboard, error) {
	contest, err := database.GetContest(s.db, cid)
	if err != nil {
		return nil, fmt.Errorf("load contest %d: %w", cid, err)
	}
	freeze := NewFreezeData(contest, s.Now())
	ftsRestricted := showFtsInFreeze || freeze.ShowFinal(false)

	team, err := database.GetTeam(s.db, teamID)
	if err != nil {
		return nil, fmt.Errorf("load team %d: %w", teamID, err)
	}
	problems, err := database.GetContestProblems(s.db, cid, true)
	if err != nil {
		return nil, err
	}
	scoreCache, err := database.GetScoreCache(s.db, cid, &teamID)
	if err != nil {
		return nil, err
	}
	rankCache, err := database.GetRankCache(s.db, cid, &teamID)
	if err != nil {
		return nil, err
	}

	board := buildScoreboard(contest, freeze, true, ftsRestricted,
		[]models.Team{*team}, problems, scoreCache, rankCache, s.cfg.ScoreInSeconds)
	rank, err := s.CalculateTeamRank(contest, team, freeze, true)
	if err != nil {
		return nil, err
	}
	if len(board.Scores) > 0 {
		board.Scores[0].Rank = rank
	}
	return board, nil
}

// CalculateTeamRank computes one team's rank from the rank cache without
// building the whole scoreboard.
func (s *Service) CalculateTeamRank(contest *models.Contest, team *models.Team, freeze *FreezeData, jury bool) (int, error) {
	if freeze == nil {
		freeze = NewFreezeData(contest, s.Now())
	}
	restricted := jury || freeze.ShowFinal(false)
	column := "sort_key_public"
	if restricted {
		column = "sort_key_restricted"
	}

	rows, err := database.GetRankCache(s.db, contest.CID, &team.TeamID)
	if err != nil {
		return 0, err
	}
	// '.' sorts before any digit, ranking a team without a cache entry
	// behind every team that has one.
	sortKey := "."
	if len(rows) > 0 {
		sortKey = rows[0].SortKey(restricted)
	}

	sortOrder := 0
	if team.Category != nil {
		sortOrder = team.Category.SortOrder
	}
	better, err := database.CountBetterRanked(s.db, contest.CID, sortOrder, column, sortKey)
	if err != nil {
		return 0, err
	}
	return int(better) + 1, nil
}

func buildScoreboard(
	contest *models.Contest,
	freeze *FreezeData,
	restricted bool,
	// ftsRestricted controls only the first-to-solve column; the
	// single-team board shows restricted counts with public FTS.
	ftsRestricted bool,
	teams []models.Team,
	problems []models.ContestProblem,
	scoreCache []models.ScoreCache,
	rankCache []models.RankCache,
	scoreInSeconds bool,
) *Scoreboard {
	board := &Scoreboard{
		Contest:    contest,
		Freeze:     freeze,
		Restricted: restricted,
		Problems:   problems,
		Matrix:     map[uint]map[uint]*MatrixItem{},
		Summary: &Summary{
			NumPoints:    map[int]int{},
			Affiliations: map[uint]int{},
			Countries:    map[string]int{},
			Problems:     map[uint]*ProblemSummary{},
		},
	}

	problemsByID := map[uint]*models.ContestProblem{}
	for i := range problems {
		problemsByID[problems[i].ProbID] = &problems[i]
		board.Summary.Problems[problems[i].ProbID] = newProblemSummary()
	}

	rankCacheByTeam := map[uint]*models.RankCache{}
	for i := range rankCache {
		rankCacheByTeam[rankCache[i].TeamID] = &rankCache[i]
	}

	for i := range teams {
		team := &teams[i]
		score := &TeamScore{
			Team:      team,
			TotalTime: team.Penalty,
			Score:     "0.000000000",
			sortKey:   ".",
		}
		if rc, ok := rankCacheByTeam[team.TeamID]; ok {
			score.NumPoints = rc.Points(restricted)
			score.TotalTime = rc.TotalTime(restricted)
			score.TotalRuntime = rc.TotalRuntime(restricted)
			score.Score = rc.Score(restricted)
			score.sortKey = rc.SortKey(restricted)
		}
		board.Scores = append(board.Scores, score)
	}

	// Display order: category sort order, then sort key, then name.
	sort.SliceStable(board.Scores, func(i, j int) bool {
		a, b := board.Scores[i], board.Scores[j]
		if so1, so2 := sortOrderOf(a.Team), sortOrderOf(b.Team); so1 != so2 {
			return so1 < so2
		}
		if a.sortKey != b.sortKey {
			return a.sortKey > b.sortKey
		}
		return strings.ToLower(a.Team.EffectiveName()) < strings.ToLower(b.Team.EffectiveName())
	})

	teamsByID := map[uint]*models.Team{}
	for i := range teams {
		teamsByID[teams[i].TeamID] = &teams[i]
	}

	for i := range scoreCache {
		cell := &scoreCache[i]
		cp, knownProblem := problemsByID[cell.ProbID]
		if _, knownTeam := teamsByID[cell.TeamID]; !knownTeam || !knownProblem {
			continue
		}
		isCorrect := cell.IsCorrect(restricted)

		points := "0"
		if cp.Problem != nil && cp.Problem.Scoring {
			points = cell.Score(restricted)
		} else if isCorrect {
			points = strconv.Itoa(cp.Points)
		}

		if board.Matrix[cell.TeamID] == nil {
			board.Matrix[cell.TeamID] = map[uint]*MatrixItem{}
		}
		board.Matrix[cell.TeamID][cell.ProbID] = &MatrixItem{
			IsCorrect:      isCorrect,
			IsFirst:        cell.IsCorrect(ftsRestricted) && cell.IsFirstToSolve,
			NumSubmissions: cell.Submissions(restricted),
			NumPending:     cell.Pending(restricted),
			Time:           cell.SolveTime(restricted),
			PenaltyTime: CalcPenaltyTime(isCorrect, cell.Submissions(restricted),
				contest.PenaltyTime, scoreInSeconds),
			Runtime: cell.Runtime(restricted),
			Score:   points,
		}
	}

	// Ranks restart per category sort order; equal sort keys share a rank
	// while the position counter keeps running (competition ranking).
	prevSortOrder := -1
	rank := 0
	var prev *TeamScore
	for _, score := range board.Scores {
		sortOrder := sortOrderOf(score.Team)
		if sortOrder != prevSortOrder {
			prevSortOrder = sortOrder
			rank = 0
			prev = nil
		}
		rank++
		if prev != nil && prev.sortKey == score.sortKey {
			score.Rank = prev.Rank
		} else {
			score.Rank = rank
		}
		prev = score

		board.Summary.NumPoints[sortOrder] += score.NumPoints
		if score.Team.Affiliation != nil {
			board.Summary.Affiliations[score.Team.Affiliation.AffilID]++
			if score.Team.Affiliation.Country != "" {
				board.Summary.Countries[score.Team.Affiliation.Country]++
			}
		}

		for probID := range problemsByID {
			if board.Matrix[score.Team.TeamID] == nil {
				board.Matrix[score.Team.TeamID] = map[uint]*MatrixItem{}
			}
			item := board.Matrix[score.Team.TeamID][probID]
			if item == nil {
				item = &MatrixItem{Score: "0"}
				board.Matrix[score.Team.TeamID][probID] = item
			}

			summary := board.Summary.Problems[probID]
			summary.NumSubmissions[sortOrder] += item.NumSubmissions
			summary.NumPending[sortOrder] += item.NumPending
			if item.IsCorrect {
				summary.NumSolved[sortOrder]++
				if best, ok := summary.BestRuntime[sortOrder]; !ok || item.Runtime < best {
					summary.BestRuntime[sortOrder] = item.Runtime
				}
			}
			if item.IsFirst {
				if best, ok := summary.BestTime[sortOrder]; !ok || item.Time < best {
					summary.BestTime[sortOrder] = item.Time
				}
			}
		}
	}

	return board
}

func sortOrderOf(team *models.Team) int {
	if team.Category != nil {
		return team.Category.SortOrder
	}
	return 0
}

// IsScoring reports whether this scoreboard ranks by partial score rather
// than solved count.
func (b *Scoreboard) IsScoring() bool {
	return b.Contest.ScoreboardType == models.ScoreboardTypeScore
}

// ShowPoints reports whether per-problem point values differ and should be
// displayed.
func (b *Scoreboard) ShowPoints() bool {
	for i := range b.Problems {
		if b.Problems[i].Points != 1 {
			return true
		}
	}
	return false
}

// ProblemRow is one cell of a scoreboard row as served over the API.
type ProblemRow struct {
	Label        string  `json:"label"`
	ProblemID    uint    `json:"problem_id"`
	NumJudged    int     `json:"num_judged"`
	NumPending   int     `json:"num_pending"`
	Solved       bool    `json:"solved"`
	Time         int     `json:"time"`
	Runtime      int     `json:"runtime"`
	FirstToSolve bool    `json:"first_to_solve"`
	Score        *string `json:"score,omitempty"`
}

// RowScore is the aggregate part of a scoreboard row.
type RowScore struct {
	NumSolved    int     `json:"num_solved"`
	TotalTime    int     `json:"total_time"`
	TotalRuntime int     `json:"total_runtime"`
	Score        *string `json:"score,omitempty"`
}

// Row is one scoreboard row as served over the API.
type Row struct {
	Rank     int          `json:"rank"`
	TeamID   uint         `json:"team_id"`
	TeamName string       `json:"team_name"`
	Score    RowScore     `json:"score"`
	Problems []ProblemRow `json:"problems"`
}

// Rows renders the scoreboard in API form, in display order.
func (b *Scoreboard) Rows(scoreInSeconds bool) []Row {
	scoring := b.IsScoring()
	rows := make([]Row, 0, len(b.Scores))
	for _, score := range b.Scores {
		row := Row{
			Rank:     score.Rank,
			TeamID:   score.Team.TeamID,
			TeamName: score.Team.EffectiveName(),
			Score: RowScore{
				NumSolved:    score.NumPoints,
				TotalTime:    score.TotalTime,
				TotalRuntime: score.TotalRuntime,
			},
		}
		if scoring {
			s := score.Score
			row.Score.Score = &s
		}
		for i := range b.Problems {
			cp := &b.Problems[i]
			item := b.Matrix[score.Team.TeamID][cp.ProbID]
			if item == nil {
				item = &MatrixItem{Score: "0"}
			}
			problemRow := ProblemRow{
				Label:        cp.ShortName,
				ProblemID:    cp.ProbID,
				NumJudged:    item.NumSubmissions,
				NumPending:   item.NumPending,
				Solved:       item.IsCorrect,
				Runtime:      item.Runtime,
				FirstToSolve: item.IsFirst,
			}
			if item.IsCorrect {
				problemRow.Time = Scoretime(item.Time, scoreInSeconds)
			}
			if cp.Problem != nil && cp.Problem.Scoring {
				s := item.Score
				problemRow.Score = &s
			}
			row.Problems = append(row.Problems, problemRow)
		}
		rows = append(rows, row)
	}
	return rows
}
