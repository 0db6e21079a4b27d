package scoreboard

import (
	"path/filepath"
	"testing"

	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixture times: a two hour contest. All submission times in the tests are
// seconds into the contest.
const (
	testStartTime = float64(1704103200) // 2024-01-01 10:00:00 +0100
	testDuration  = 2 * 3600
)

func defaultScoring() config.Scoring {
	return config.Scoring{
		PenaltyTime:          20,
		ScoreInSeconds:       false,
		VerificationRequired: false,
		CompilePenalty:       false,
	}
}

func newTestService(t *testing.T, cfg config.Scoring) (*Service, *gorm.DB) {
	t.Helper()

	db, err := database.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	svc := NewService(db, cfg, pubsub.New())
	// The fixtures are always inspected after the contest has ended.
	svc.Now = func() float64 { return testStartTime + testDuration + 3600 }
	return svc, db
}

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	svc *Service

	contest  *models.Contest
	category *models.TeamCategory
	teams    []*models.Team
	problems []*models.Problem
}

func newFixture(t *testing.T, svc *Service, db *gorm.DB, numTeams, numProblems int) *fixture {
	t.Helper()
	f := &fixture{t: t, db: db, svc: svc}

	f.contest = &models.Contest{
		ExternalID:       "scoretest",
		Name:             "scoretest",
		ShortName:        "scoretest",
		StartTime:        testStartTime,
		StartTimeEnabled: true,
		EndTime:          testStartTime + testDuration,
		ScoreboardType:   models.ScoreboardTypePassFail,
		PenaltyTime:      20,
		OpenToAllTeams:   true,
	}
	require.NoError(t, database.CreateContest(db, f.contest))

	f.category = &models.TeamCategory{Name: "Participants", SortOrder: 0, Visible: true}
	require.NoError(t, db.Create(f.category).Error)

	for i := 0; i < numTeams; i++ {
		team := &models.Team{
			Name:       "scoretest team " + string(rune('0'+i)),
			CategoryID: f.category.CategoryID,
			Enabled:    true,
		}
		require.NoError(t, database.CreateTeam(db, team))
		f.teams = append(f.teams, team)
	}

	for i := 0; i < numProblems; i++ {
		letter := string(rune('a' + i))
		problem := &models.Problem{Name: "scoretest problem " + letter, TimeLimit: 5}
		require.NoError(t, database.CreateProblem(db, problem))
		require.NoError(t, database.CreateContestProblem(db, &models.ContestProblem{
			CID:         f.contest.CID,
			ProbID:      problem.ProbID,
			ShortName:   letter,
			Points:      1,
			AllowSubmit: true,
		}))
		f.problems = append(f.problems, problem)
	}

	return f
}

// setFreeze updates the contest freeze time, given in seconds into the
// contest. Nil clears it.
func (f *fixture) setFreeze(contestSeconds *float64) {
	f.t.Helper()
	if contestSeconds == nil {
		f.contest.FreezeTime = nil
	} else {
		freeze := testStartTime + *contestSeconds
		f.contest.FreezeTime = &freeze
	}
	require.NoError(f.t, f.db.Model(&models.Contest{}).
		Where("cid = ?", f.contest.CID).
		Update("freeze_time", f.contest.FreezeTime).Error)
}

func (f *fixture) refresh() {
	f.t.Helper()
	require.NoError(f.t, f.svc.RefreshCache(f.contest))
}

// createSubmission files a submission at the given contest-relative time.
// With a verdict it also gets a valid judging.
func (f *fixture) createSubmission(team, problem int, contestSeconds float64, verdict string, verified bool) *models.Submission {
	f.t.Helper()

	submission := &models.Submission{
		CID:        f.contest.CID,
		TeamID:     f.teams[team].TeamID,
		ProbID:     f.problems[problem].ProbID,
		LanguageID: "cpp",
		SubmitTime: testStartTime + contestSeconds,
		Valid:      true,
	}
	require.NoError(f.t, database.CreateSubmission(f.db, submission))

	if verdict != "" {
		judging := &models.Judging{
			SubmitID:  submission.SubmitID,
			CID:       f.contest.CID,
			StartTime: submission.SubmitTime + 5,
			EndTime:   submission.SubmitTime + 10,
			Result:    &verdict,
			Verified:  verified,
			Valid:     true,
		}
		require.NoError(f.t, database.CreateJudging(f.db, judging))
	}
	return submission
}

func (f *fixture) invalidate(submission *models.Submission) {
	f.t.Helper()
	require.NoError(f.t, database.SetSubmissionValidity(f.db, submission.SubmitID, false))
}

type expectedScore struct {
	team   int
	rank   int
	solved int
	time   int
}

func (f *fixture) assertScores(board *Scoreboard, expected []expectedScore) {
	f.t.Helper()

	byTeam := map[uint]*TeamScore{}
	for _, score := range board.Scores {
		byTeam[score.Team.TeamID] = score
	}
	for _, want := range expected {
		team := f.teams[want.team]
		score := byTeam[team.TeamID]
		require.NotNilf(f.t, score, "no score row for %s", team.Name)
		require.Equalf(f.t, want.rank, score.Rank, "rank for %s", team.Name)
		require.Equalf(f.t, want.solved, score.NumPoints, "solved for %s", team.Name)
		require.Equalf(f.t, want.time, score.TotalTime, "total time for %s", team.Name)
	}
}

// assertFTS checks the whole first-to-solve matrix: want maps problem index
// to the team index that must be first; every other cell must not be.
func (f *fixture) assertFTS(board *Scoreboard, want map[int]int) {
	f.t.Helper()

	for pi, problem := range f.problems {
		for ti, team := range f.teams {
			item := board.Matrix[team.TeamID][problem.ProbID]
			isFirst := item != nil && item.IsFirst
			expected := false
			if teamIdx, ok := want[pi]; ok && teamIdx == ti {
				expected = true
			}
			require.Equalf(f.t, expected, isFirst,
				"first-to-solve for team %s, problem %s", team.Name, problem.Name)
		}
	}
}
