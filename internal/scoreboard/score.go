package scoreboard

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrContestFinalized is returned when a judging would change the result of
// a contest whose results have been finalized.
var ErrContestFinalized = errors.New("contest results are finalized")

type rowKey struct {
	cid, teamID, probID uint
}

type rankKey struct {
	cid, teamID uint
}

// Service maintains the score and rank caches and serves scoreboards.
//
// Writers for different (team, problem) rows proceed independently; writers
// for the same row are serialized on a per-row lock. A full cache rebuild
// takes the contest lock exclusively so it never interleaves with
// incremental updates; incremental updates and reads share it.
type Service struct {
	db     *gorm.DB
	cfg    config.Scoring
	broker *pubsub.Broker

	// Now returns the current time as Unix seconds. Swappable in tests.
	Now func() float64

	mu           sync.Mutex
	rowLocks     map[rowKey]*sync.Mutex
	rankLocks    map[rankKey]*sync.Mutex
	contestLocks map[uint]*sync.RWMutex
}

func NewService(db *gorm.DB, cfg config.Scoring, broker *pubsub.Broker) *Service {
	return &Service{
		db:     db,
		cfg:    cfg,
		broker: broker,
		Now: func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		},
		rowLocks:     map[rowKey]*sync.Mutex{},
		rankLocks:    map[rankKey]*sync.Mutex{},
		contestLocks: map[uint]*sync.RWMutex{},
	}
}

func (s *Service) rowLock(key rowKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rowLocks[key] == nil {
		s.rowLocks[key] = &sync.Mutex{}
	}
	return s.rowLocks[key]
}

func (s *Service) rankLock(key rankKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rankLocks[key] == nil {
		s.rankLocks[key] = &sync.Mutex{}
	}
	return s.rankLocks[key]
}

func (s *Service) contestLock(cid uint) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contestLocks[cid] == nil {
		s.contestLocks[cid] = &sync.RWMutex{}
	}
	return s.contestLocks[cid]
}

// contestTime converts an absolute time to seconds into the contest.
func contestTime(contest *models.Contest, abs float64) float64 {
	return abs - contest.StartTime
}

// isAfterFreeze reports whether a submission at the given absolute time
// falls inside the scoreboard freeze.
func isAfterFreeze(contest *models.Contest, submitTime float64) bool {
	return contest.FreezeTime != nil && submitTime >= *contest.FreezeTime
}

// Scoretime converts contest seconds to scoreboard time units: whole
// minutes normally, whole seconds when second-granularity scoring is on.
func Scoretime(contestSeconds float64, scoreInSeconds bool) int {
	if scoreInSeconds {
		return int(math.Floor(contestSeconds))
	}
	return int(math.Floor(contestSeconds / 60))
}

// CalcPenaltyTime returns the penalty time for a solved problem given the
// number of submissions up to and including the correct one.
func CalcPenaltyTime(solved bool, numSubmissions, penaltyTime int, scoreInSeconds bool) int {
	if !solved {
		return 0
	}
	penalty := (numSubmissions - 1) * penaltyTime
	if scoreInSeconds {
		penalty *= 60
	}
	return penalty
}

// CalculateScoreRow (re)computes the score cache row for one team and one
// problem from the submissions table, for both the public and the
// restricted perspective, and upserts it. With updateRank set, a row that
// contains a solve (or a positive score) also triggers a rank cache update.
func (s *Service) CalculateScoreRow(contest *models.Contest, team *models.Team, problem *models.Problem, updateRank bool) error {
	zap.S().Debugw("calculate score row",
		"cid", contest.CID, "teamid", team.TeamID, "probid", problem.ProbID)

	if team.Category == nil {
		zap.S().Warnw("team has no category, skipping", "teamid", team.TeamID)
		return nil
	}

	lock := s.rowLock(rowKey{contest.CID, team.TeamID, problem.ProbID})
	lock.Lock()
	defer lock.Unlock()

	submissions, err := database.GetScoringSubmissions(s.db, contest.CID, team.TeamID, problem.ProbID, contest.EndTime)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}

	var (
		submissionsJury, pendingJury int
		submissionsPubl, pendingPubl int
		timeJury, timePubl           float64
		correctJury, correctPubl     bool
		runtimeJury                  = math.MaxInt
		runtimePubl                  = math.MaxInt

		bestScoreJury = decimal.Zero
		bestScorePubl = decimal.Zero

		absSubmitTime float64
	)

	for i := range submissions {
		submission := &submissions[i]
		judging := submission.ValidJudging()
		afterFreeze := isAfterFreeze(contest, submission.SubmitTime)

		// Contest-relative submit time, capped at the contest start so a
		// reset start time cannot produce negative scoreboard times.
		relTime := contestTime(contest, math.Max(submission.SubmitTime, contest.StartTime))

		// Runtime improvements count for every correct submission, also
		// after the team already solved the problem.
		if judging != nil && judging.Result != nil && *judging.Result == models.ResultCorrect {
			runtime := int(math.Floor(1000 * judging.MaxRuntime()))
			runtimeJury = min(runtimeJury, runtime)
			if !afterFreeze {
				runtimePubl = min(runtimePubl, runtime)
			}
		}

		// The best score of a scoring problem only ever goes up, across
		// all valid judgings regardless of verdict.
		if problem.Scoring && judging != nil && judging.Score != nil {
			score, err := decimal.NewFromString(*judging.Score)
			if err != nil {
				return fmt.Errorf("judging %d: bad score %q: %w", judging.JudgingID, *judging.Score, err)
			}
			if score.GreaterThan(bestScoreJury) {
				bestScoreJury = score
				timeJury = relTime
			}
			if !afterFreeze && score.GreaterThan(bestScorePubl) {
				bestScorePubl = score
				timePubl = relTime
			}
		}

		// Once the public has a correct submission there is nothing left
		// to count for this row.
		if correctPubl {
			continue
		}

		if judging == nil || judging.Result == nil ||
			(s.cfg.VerificationRequired && !judging.Verified) {
			// The jury stops counting pending submissions once it has a
			// correct one; the public keeps seeing them during the freeze
			// to not leak the solve.
			if !correctJury {
				pendingJury++
			}
			pendingPubl++
			continue
		}

		// Compiler errors only count as a submission when they carry a
		// penalty.
		countSubmission := s.cfg.CompilePenalty || *judging.Result != models.ResultCompilerError

		if !correctJury && countSubmission {
			submissionsJury++
		}
		if afterFreeze {
			// Shown as pending to the public, compiler errors included, to
			// not leak information during the freeze.
			pendingPubl++
		} else if countSubmission {
			submissionsPubl++
		}

		if correctJury {
			continue
		}

		absSubmitTime = math.Max(submission.SubmitTime, contest.StartTime)
		if *judging.Result == models.ResultCorrect {
			correctJury = true
			if !problem.Scoring {
				timeJury = relTime
			}
			if !afterFreeze {
				correctPubl = true
				if !problem.Scoring {
					timePubl = relTime
				}
			}
		}
	}

	// First to solve, only relevant when there was a solve at all: no valid
	// earlier submission may be correct or still able to become correct.
	firstToSolve := false
	if correctJury {
		earlier, err := database.CountEarlierPotentialSolves(
			s.db, contest.CID, problem.ProbID,
			team.Category.SortOrder, absSubmitTime, s.cfg.VerificationRequired)
		if err != nil {
			return fmt.Errorf("first-to-solve query: %w", err)
		}
		firstToSolve = earlier == 0
	}

	if runtimeJury == math.MaxInt {
		runtimeJury = 0
	}
	if runtimePubl == math.MaxInt {
		runtimePubl = 0
	}

	row := &models.ScoreCache{
		CID:    contest.CID,
		TeamID: team.TeamID,
		ProbID: problem.ProbID,

		SubmissionsRestricted: submissionsJury,
		PendingRestricted:     pendingJury,
		SolveTimeRestricted:   timeJury,
		RuntimeRestricted:     runtimeJury,
		IsCorrectRestricted:   correctJury,
		ScoreRestricted:       bestScoreJury.StringFixed(Scale),

		SubmissionsPublic: submissionsPubl,
		PendingPublic:     pendingPubl,
		SolveTimePublic:   timePubl,
		RuntimePublic:     runtimePubl,
		IsCorrectPublic:   correctPubl,
		ScorePublic:       bestScorePubl.StringFixed(Scale),

		IsFirstToSolve: firstToSolve,
	}
	if err := database.UpsertScoreCache(s.db, row); err != nil {
		return fmt.Errorf("upsert score cache: %w", err)
	}

	if updateRank && (correctJury || correctPubl || bestScoreJury.IsPositive()) {
		return s.UpdateRankCache(contest, team)
	}
	return nil
}

// UpdateRankCache recomputes a team's rank cache entry from its score cache
// rows and upserts it.
func (s *Service) UpdateRankCache(contest *models.Contest, team *models.Team) error {
	zap.S().Debugw("update rank cache", "cid", contest.CID, "teamid", team.TeamID)

	lock := s.rankLock(rankKey{contest.CID, team.TeamID})
	lock.Lock()
	defer lock.Unlock()

	contestProblems, err := database.GetContestProblems(s.db, contest.CID, false)
	if err != nil {
		return fmt.Errorf("load contest problems: %w", err)
	}
	problems := map[uint]*models.ContestProblem{}
	for i := range contestProblems {
		problems[contestProblems[i].ProbID] = &contestProblems[i]
	}

	cells, err := database.GetScoreCache(s.db, contest.CID, &team.TeamID)
	if err != nil {
		return fmt.Errorf("load score cache: %w", err)
	}

	type totals struct {
		points          int
		totalTime       int
		totalRuntime    int
		totalScore      decimal.Decimal
		lastCorrect     int
		lastScoreChange int
	}
	variant := map[bool]*totals{
		false: {totalTime: team.Penalty},
		true:  {totalTime: team.Penalty},
	}

	for i := range cells {
		cell := &cells[i]
		cp, ok := problems[cell.ProbID]
		if !ok {
			continue
		}
		for _, restricted := range []bool{false, true} {
			t := variant[restricted]
			if cell.IsCorrect(restricted) {
				penalty := CalcPenaltyTime(true, cell.Submissions(restricted),
					contest.PenaltyTime, s.cfg.ScoreInSeconds)
				solveTime := Scoretime(cell.SolveTime(restricted), s.cfg.ScoreInSeconds)
				t.points += cp.Points
				t.lastCorrect = max(t.lastCorrect, solveTime)
				t.totalTime += solveTime + penalty
				t.totalRuntime += cell.Runtime(restricted)
			}
			if cp.Problem != nil && cp.Problem.Scoring {
				score, err := decimal.NewFromString(cell.Score(restricted))
				if err != nil {
					return fmt.Errorf("score cache (%d,%d,%d): bad score %q: %w",
						cell.CID, cell.TeamID, cell.ProbID, cell.Score(restricted), err)
				}
				if score.IsPositive() {
					t.totalScore = t.totalScore.Add(score)
					t.lastScoreChange = max(t.lastScoreChange,
						Scoretime(cell.SolveTime(restricted), s.cfg.ScoreInSeconds))
				}
			}
		}
	}

	scoring := contest.ScoreboardType == models.ScoreboardTypeScore
	sortKeys := map[bool]string{}
	for _, restricted := range []bool{false, true} {
		t := variant[restricted]
		if scoring {
			sortKeys[restricted], err = ScoringScoreKey(t.totalScore, t.lastScoreChange)
		} else {
			sortKeys[restricted], err = ICPCScoreKey(t.points, t.totalTime, t.lastCorrect)
		}
		if err != nil {
			return fmt.Errorf("sort key for team %d: %w", team.TeamID, err)
		}
	}

	row := &models.RankCache{
		CID:    contest.CID,
		TeamID: team.TeamID,

		PointsRestricted:       variant[true].points,
		TotalTimeRestricted:    variant[true].totalTime,
		TotalRuntimeRestricted: variant[true].totalRuntime,
		ScoreRestricted:        variant[true].totalScore.StringFixed(Scale),
		SortKeyRestricted:      sortKeys[true],

		PointsPublic:       variant[false].points,
		TotalTimePublic:    variant[false].totalTime,
		TotalRuntimePublic: variant[false].totalRuntime,
		ScorePublic:        variant[false].totalScore.StringFixed(Scale),
		SortKeyPublic:      sortKeys[false],
	}
	if err := database.UpsertRankCache(s.db, row); err != nil {
		return fmt.Errorf("upsert rank cache: %w", err)
	}

	if s.broker != nil {
		s.broker.Publish(contest.CID, pubsub.ScoreboardUpdate{
			CID:    contest.CID,
			TeamID: team.TeamID,
		})
	}
	return nil
}

// RefreshCache rebuilds the score and rank caches for a whole contest from
// scratch. It takes the contest lock exclusively, so no incremental update
// can interleave with the rebuild.
func (s *Service) RefreshCache(contest *models.Contest) error {
	lock := s.contestLock(contest.CID)
	lock.Lock()
	defer lock.Unlock()

	zap.S().Infow("refreshing scoreboard cache", "cid", contest.CID)

	teams, err := database.GetScoreboardTeams(s.db, contest, true, nil, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	problems, err := database.GetContestProblems(s.db, contest.CID, false)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}

	if len(teams) == 0 || len(problems) == 0 {
		if err := s.db.Where("cid = ?", contest.CID).Delete(&models.ScoreCache{}).Error; err != nil {
			return err
		}
		return s.db.Where("cid = ?", contest.CID).Delete(&models.RankCache{}).Error
	}

	teamIDs := make([]uint, 0, len(teams))
	probIDs := make([]uint, 0, len(problems))
	for i := range problems {
		probIDs = append(probIDs, problems[i].ProbID)
	}

	for i := range teams {
		team := &teams[i]
		teamIDs = append(teamIDs, team.TeamID)
		for j := range problems {
			if err := s.CalculateScoreRow(contest, team, problems[j].Problem, false); err != nil {
				return err
			}
		}
		if err := s.UpdateRankCache(contest, team); err != nil {
			return err
		}
	}

	if err := database.DeleteStaleScoreCache(s.db, contest.CID, teamIDs, probIDs); err != nil {
		return fmt.Errorf("prune score cache: %w", err)
	}
	if err := database.DeleteStaleRankCache(s.db, contest.CID, teamIDs); err != nil {
		return fmt.Errorf("prune rank cache: %w", err)
	}
	return nil
}

// ApplyJudging records a completed (or re-done) judging for a submission and
// brings the caches up to date. Any previously valid judging of the same
// submission is superseded. For scoring problems with per-testcase runs, the
// judging's result and score are derived from the problem's testcase group
// tree when not supplied.
func (s *Service) ApplyJudging(judging *models.Judging, runs []models.JudgingRun) error {
	submission, err := database.GetSubmission(s.db, judging.SubmitID)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", judging.SubmitID, err)
	}
	contest, err := database.GetContest(s.db, submission.CID)
	if err != nil {
		return fmt.Errorf("load contest %d: %w", submission.CID, err)
	}

	lock := s.contestLock(contest.CID)
	lock.RLock()
	defer lock.RUnlock()

	freeze := NewFreezeData(contest, s.Now())
	previous := submission.ValidJudging()
	if freeze.Finalized() && previous != nil && previous.Result != nil &&
		(judging.Result == nil || *judging.Result != *previous.Result) {
		return ErrContestFinalized
	}

	judging.CID = contest.CID
	judging.Valid = true
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := database.InvalidateJudgings(tx, submission.SubmitID); err != nil {
			return err
		}
		if err := database.CreateJudging(tx, judging); err != nil {
			return err
		}
		for i := range runs {
			runs[i].JudgingID = judging.JudgingID
		}
		if len(runs) > 0 {
			if err := tx.Create(&runs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store judging: %w", err)
	}
	judging.Runs = runs

	var problem models.Problem
	if err := s.db.Where("probid = ?", submission.ProbID).First(&problem).Error; err != nil {
		return fmt.Errorf("load problem %d: %w", submission.ProbID, err)
	}

	if problem.Scoring && problem.ParentGroupID != nil &&
		(judging.Result == nil || judging.Score == nil) && len(runs) > 0 {
		if err := s.aggregateJudging(&problem, judging); err != nil {
			return err
		}
	} else if !problem.Scoring && judging.Result == nil && len(runs) > 0 {
		if err := s.finalizeJudging(judging); err != nil {
			return err
		}
	}

	team, err := database.GetTeam(s.db, submission.TeamID)
	if err != nil {
		return fmt.Errorf("load team %d: %w", submission.TeamID, err)
	}
	return s.CalculateScoreRow(contest, team, &problem, true)
}

// finalizeJudging derives a pass/fail judging's verdict from its run
// results in testcase order, as soon as enough runs are in to decide it.
func (s *Service) finalizeJudging(judging *models.Judging) error {
	results := make([]*string, len(judging.Runs))
	for i := range judging.Runs {
		results[i] = judging.Runs[i].RunResult
	}
	result, err := FinalResult(results)
	if err != nil {
		return fmt.Errorf("judging %d: %w", judging.JudgingID, err)
	}
	if result == nil {
		return nil
	}
	judging.Result = result
	return s.db.Model(&models.Judging{}).
		Where("judgingid = ?", judging.JudgingID).
		Update("result", result).Error
}

// aggregateJudging fills in a judging's score and result from its runs and
// the problem's testcase group tree, and persists them when decided.
func (s *Service) aggregateJudging(problem *models.Problem, judging *models.Judging) error {
	tree, err := BuildGroupTree(s.db, *problem.ParentGroupID)
	if err != nil {
		return err
	}
	runsByGroup, err := RunsByGroup(s.db, judging)
	if err != nil {
		return err
	}
	score, result, err := EvaluateGroup(tree, runsByGroup)
	if err != nil {
		return err
	}
	if result == nil {
		// Not all verdicts are in yet; the judging stays pending.
		return nil
	}
	judging.Score = score
	judging.Result = result
	return s.db.Model(&models.Judging{}).
		Where("judgingid = ?", judging.JudgingID).
		Updates(map[string]any{"score": score, "result": result}).Error
}

// InvalidateSubmission flips a submission's validity and recomputes the
// affected score row, e.g. when a submission is withdrawn or restored.
func (s *Service) InvalidateSubmission(submitID uint, valid bool) error {
	submission, err := database.GetSubmission(s.db, submitID)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", submitID, err)
	}
	contest, err := database.GetContest(s.db, submission.CID)
	if err != nil {
		return err
	}

	lock := s.contestLock(contest.CID)
	lock.RLock()
	defer lock.RUnlock()

	if err := database.SetSubmissionValidity(s.db, submitID, valid); err != nil {
		return err
	}
	return s.recalculateRow(contest, submission.TeamID, submission.ProbID)
}

// InvalidateJudging marks one judging invalid (for a queued rejudging; the
// submission keeps no valid judging until the new one arrives) and
// recomputes the affected score row.
func (s *Service) InvalidateJudging(judgingID uint) error {
	judging, err := database.GetJudging(s.db, judgingID)
	if err != nil {
		return fmt.Errorf("load judging %d: %w", judgingID, err)
	}
	submission, err := database.GetSubmission(s.db, judging.SubmitID)
	if err != nil {
		return err
	}
	contest, err := database.GetContest(s.db, submission.CID)
	if err != nil {
		return err
	}

	lock := s.contestLock(contest.CID)
	lock.RLock()
	defer lock.RUnlock()

	if err := database.SetJudgingValidity(s.db, judgingID, false); err != nil {
		return err
	}
	return s.recalculateRow(contest, submission.TeamID, submission.ProbID)
}

func (s *Service) recalculateRow(contest *models.Contest, teamID, probID uint) error {
	team, err := database.GetTeam(s.db, teamID)
	if err != nil {
		return err
	}
	var problem models.Problem
	if err := s.db.Where("probid = ?", probID).First(&problem).Error; err != nil {
		return err
	}
	return s.CalculateScoreRow(contest, team, &problem, true)
}
