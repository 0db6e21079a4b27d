package scoreboard

import (
	"testing"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/stretchr/testify/require"
)

// createDefaultSubmissions files the standard set used by several tests:
// team 0 has one judged and one pending submission on problem a, team 1
// solves a and b with some wrong tries, and team 2 submits nothing.
func createDefaultSubmissions(f *fixture) {
	f.createSubmission(0, 0, 53*60+15.053, "no-output", false)
	f.createSubmission(0, 0, 53*60+57.240, "", false)

	f.createSubmission(1, 0, 61*60+00.000, "compiler-error", false)
	f.createSubmission(1, 0, 69*60+00.000, "correct", false)
	f.createSubmission(1, 0, 72*60+07.824, "wrong-answer", false)
	f.createSubmission(1, 1, 72*60+39.733, "wrong-answer", false)
	f.createSubmission(1, 1, 72*60+59.999, "correct", false)
	f.createSubmission(1, 1, 79*60+00.000, "wrong-answer", false)
	f.createSubmission(1, 2, 84*60+42, "", false)
	f.invalidate(f.createSubmission(1, 2, 85*60+42, "correct", false))
}

func TestScoreboardsEmpty(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	f.refresh()

	expected := []expectedScore{
		{team: 0, rank: 1, solved: 0, time: 0},
		{team: 1, rank: 1, solved: 0, time: 0},
	}

	for _, jury := range []bool{false, true} {
		board, err := svc.GetScoreboard(f.contest.CID, jury, nil, false)
		require.NoError(t, err)
		f.assertScores(board, expected)
		f.assertFTS(board, nil)
	}
}

func TestScoreboardsNoFreeze(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	createDefaultSubmissions(f)
	f.refresh()

	expected := []expectedScore{
		{team: 0, rank: 2, solved: 0, time: 0},
		{team: 1, rank: 1, solved: 2, time: 161},
	}

	expectedFTS := map[int]int{
		// problem a has an earlier unjudged solution by team 0
		1: 1,
		// the problem c solution by team 1 is invalid
	}

	for _, jury := range []bool{false, true} {
		board, err := svc.GetScoreboard(f.contest.CID, jury, nil, false)
		require.NoError(t, err)
		f.assertScores(board, expected)
		f.assertFTS(board, expectedFTS)
	}
}

func TestScoreboardJuryFreeze(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	createDefaultSubmissions(f)

	expected := []expectedScore{
		{team: 0, rank: 2, solved: 0, time: 0},
		{team: 1, rank: 1, solved: 2, time: 161},
	}
	expectedFTS := map[int]int{1: 1}

	// The jury scoreboard must not depend on the freeze, so test a couple.
	for _, freeze := range []float64{30 * 60, 60 * 60, 80 * 60} {
		freeze := freeze
		f.setFreeze(&freeze)
		f.refresh()

		board, err := svc.GetScoreboard(f.contest.CID, true, nil, false)
		require.NoError(t, err)
		f.assertScores(board, expected)
		f.assertFTS(board, expectedFTS)
	}
}

func TestScoreboardPublicFreeze(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	freeze := float64(70 * 60)
	f.setFreeze(&freeze)
	createDefaultSubmissions(f)
	f.refresh()

	// The public only sees the solve of problem a; the solve of b falls
	// inside the freeze and shows as pending.
	expected := []expectedScore{
		{team: 0, rank: 2, solved: 0, time: 0},
		{team: 1, rank: 1, solved: 1, time: 69},
	}

	board, err := svc.GetScoreboard(f.contest.CID, false, nil, false)
	require.NoError(t, err)
	f.assertScores(board, expected)
	f.assertFTS(board, nil)
}

func TestScoreboardReproducible(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	createDefaultSubmissions(f)

	f.refresh()
	first, err := svc.GetScoreboard(f.contest.CID, false, nil, false)
	require.NoError(t, err)

	f.refresh()
	second, err := svc.GetScoreboard(f.contest.CID, false, nil, false)
	require.NoError(t, err)

	require.Equal(t, first.Rows(false), second.Rows(false), "repeated scoreboard is equal")
	require.Equal(t, first.Summary, second.Summary)
}

func TestTeamScoreboardFreezeFTS(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)
	freeze := float64(70 * 60)
	f.setFreeze(&freeze)
	createDefaultSubmissions(f)
	f.refresh()

	board, err := svc.GetTeamScoreboard(f.contest.CID, f.teams[1].TeamID, false)
	require.NoError(t, err)

	// The team sees its own results through the freeze, only the
	// first-to-solve column stays hidden.
	require.Len(t, board.Scores, 1)
	require.Equal(t, 1, board.Scores[0].Rank)
	require.Equal(t, 2, board.Scores[0].NumPoints)
	require.Equal(t, 161, board.Scores[0].TotalTime)
	for _, problem := range f.problems {
		item := board.Matrix[f.teams[1].TeamID][problem.ProbID]
		require.NotNil(t, item)
		require.Falsef(t, item.IsFirst, "problem %s must not show first-to-solve", problem.Name)
	}
}

func TestOneSingleFTS(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)

	f.createSubmission(0, 0, 53*60+15.053, "correct", true)
	f.createSubmission(0, 0, 53*60+57.240, "", false)
	f.createSubmission(0, 0, 53*60+59.841, "wrong-answer", false)
	f.createSubmission(0, 1, 61*60+00.000, "correct", true)

	f.createSubmission(1, 0, 53*60+15.054, "correct", true)
	f.createSubmission(1, 1, 59*60+59.999, "correct", false)

	expectedFTS := map[int]int{0: 0, 1: 1}

	for _, jury := range []bool{false, true} {
		for _, freeze := range []*float64{nil, ptr(60 * 60.0), ptr(80 * 60.0)} {
			f.setFreeze(freeze)
			f.refresh()

			board, err := svc.GetScoreboard(f.contest.CID, jury, nil, false)
			require.NoError(t, err)
			f.assertFTS(board, expectedFTS)
		}
	}
}

func TestFTSWithVerificationRequired(t *testing.T) {
	cfg := defaultScoring()
	cfg.VerificationRequired = true
	svc, db := newTestService(t, cfg)
	f := newFixture(t, svc, db, 3, 3)

	f.createSubmission(0, 0, 53*60+15.053, "correct", true)
	f.createSubmission(0, 0, 53*60+57.240, "", false)
	f.createSubmission(0, 0, 53*60+59.841, "wrong-answer", false)
	f.createSubmission(0, 1, 61*60+00.000, "correct", true)

	f.createSubmission(1, 0, 53*60+15.054, "wrong-answer", true)
	f.createSubmission(1, 1, 59*60+59.999, "correct", false)

	// Problem b is solved by team 0, but team 1 has an earlier unverified
	// submission that could still turn out correct.
	expectedFTS := map[int]int{0: 0}

	for _, jury := range []bool{false, true} {
		for _, freeze := range []*float64{nil, ptr(60 * 60.0), ptr(80 * 60.0)} {
			f.setFreeze(freeze)
			f.refresh()

			board, err := svc.GetScoreboard(f.contest.CID, jury, nil, false)
			require.NoError(t, err)
			f.assertFTS(board, expectedFTS)
		}
	}
}

func TestFTSWithQueuedRejudging(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 3)

	// Team 0's first submission is queued for a rejudging, but its original
	// wrong-answer judging stays valid until the new judging lands, so it
	// cannot block team 1's first-to-solve.
	f.createSubmission(0, 0, 53*60+15.053, "wrong-answer", false)
	f.createSubmission(0, 0, 55*60+59.841, "correct", false)

	f.createSubmission(1, 0, 54*60+15.054, "correct", false)

	f.refresh()

	expectedFTS := map[int]int{0: 1}

	for _, jury := range []bool{false, true} {
		board, err := svc.GetScoreboard(f.contest.CID, jury, nil, false)
		require.NoError(t, err)
		f.assertFTS(board, expectedFTS)
	}
}

func TestFTSSubMillisecondTie(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 2, 1)

	// Stored submit times are compared at four decimals: a difference below
	// that resolution must not make both teams first to solve.
	f.createSubmission(0, 0, 10*60+0.00004, "correct", false)
	f.createSubmission(1, 0, 10*60, "correct", false)
	f.refresh()

	board, err := svc.GetScoreboard(f.contest.CID, true, nil, false)
	require.NoError(t, err)
	f.assertFTS(board, map[int]int{0: 1})
}

func TestApplyJudgingDerivesVerdict(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 1, 2)

	correct := "correct"
	wrong := "wrong-answer"

	// A judging that arrives without an overall verdict gets one derived
	// from its run results.
	submission := f.createSubmission(0, 0, 20*60, "", false)
	judging := &models.Judging{
		SubmitID:  submission.SubmitID,
		StartTime: submission.SubmitTime + 5,
		EndTime:   submission.SubmitTime + 10,
	}
	runs := []models.JudgingRun{{RunResult: &correct}, {RunResult: &wrong}}
	require.NoError(t, svc.ApplyJudging(judging, runs))

	require.NotNil(t, judging.Result)
	require.Equal(t, wrong, *judging.Result)
	stored, err := database.GetJudging(db, judging.JudgingID)
	require.NoError(t, err)
	require.NotNil(t, stored.Result)
	require.Equal(t, wrong, *stored.Result)

	// A judging whose remaining runs could still change the outcome stays
	// undecided.
	partial := f.createSubmission(0, 1, 25*60, "", false)
	open := &models.Judging{
		SubmitID:  partial.SubmitID,
		StartTime: partial.SubmitTime + 5,
		EndTime:   partial.SubmitTime + 10,
	}
	require.NoError(t, svc.ApplyJudging(open, []models.JudgingRun{{RunResult: &correct}, {}}))
	require.Nil(t, open.Result)

	board, err := svc.GetScoreboard(f.contest.CID, true, nil, false)
	require.NoError(t, err)
	decided := board.Matrix[f.teams[0].TeamID][f.problems[0].ProbID]
	require.NotNil(t, decided)
	require.Equal(t, 1, decided.NumSubmissions)
	require.Equal(t, 0, decided.NumPending)
	pending := board.Matrix[f.teams[0].TeamID][f.problems[1].ProbID]
	require.NotNil(t, pending)
	require.Equal(t, 1, pending.NumPending)
}

func TestScoreboardVisibleOnly(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 2, 1)

	hidden := &models.TeamCategory{Name: "Organisers", SortOrder: 1, Visible: true}
	require.NoError(t, db.Create(hidden).Error)
	require.NoError(t, db.Model(&models.TeamCategory{}).
		Where("categoryid = ?", hidden.CategoryID).Update("visible", false).Error)
	staff := &models.Team{Name: "jury test team", CategoryID: hidden.CategoryID, Enabled: true}
	require.NoError(t, database.CreateTeam(db, staff))

	f.createSubmission(0, 0, 10*60, "correct", false)
	f.refresh()

	onBoard := func(board *Scoreboard) bool {
		for _, score := range board.Scores {
			if score.Team.TeamID == staff.TeamID {
				return true
			}
		}
		return false
	}

	full, err := svc.GetScoreboard(f.contest.CID, true, nil, false)
	require.NoError(t, err)
	require.True(t, onBoard(full))

	visible, err := svc.GetScoreboard(f.contest.CID, true, nil, true)
	require.NoError(t, err)
	require.False(t, onBoard(visible))

	public, err := svc.GetScoreboard(f.contest.CID, false, nil, false)
	require.NoError(t, err)
	require.False(t, onBoard(public))
}

func TestScoreboardClosedContest(t *testing.T) {
	svc, db := newTestService(t, defaultScoring())
	f := newFixture(t, svc, db, 3, 1)

	require.NoError(t, db.Model(&models.Contest{}).
		Where("cid = ?", f.contest.CID).Update("open_to_all_teams", false).Error)
	f.contest.OpenToAllTeams = false
	require.NoError(t, database.CreateContestTeam(db, &models.ContestTeam{
		CID:    f.contest.CID,
		TeamID: f.teams[1].TeamID,
	}))

	f.createSubmission(1, 0, 10*60, "correct", false)
	f.refresh()

	board, err := svc.GetScoreboard(f.contest.CID, true, nil, false)
	require.NoError(t, err)
	require.Len(t, board.Scores, 1)
	require.Equal(t, f.teams[1].TeamID, board.Scores[0].Team.TeamID)
	require.Equal(t, 1, board.Scores[0].NumPoints)
}

func ptr(v float64) *float64 { return &v }
