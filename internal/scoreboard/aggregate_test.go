package scoreboard

import (
	"path/filepath"
	"testing"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/stretchr/testify/require"
)

func sptr(s string) *string { return &s }

func TestFinalResult(t *testing.T) {
	tests := []struct {
		name    string
		runs    []*string
		want    *string
		wantErr bool
	}{
		{name: "empty", runs: nil, want: nil},
		{name: "all correct", runs: []*string{sptr("correct"), sptr("correct")}, want: sptr("correct")},
		{name: "correct then pending", runs: []*string{sptr("correct"), nil}, want: nil},
		{name: "failure after pending stays undecided", runs: []*string{nil, sptr("wrong-answer")}, want: nil},
		{name: "failure before pending decides", runs: []*string{sptr("wrong-answer"), nil}, want: sptr("wrong-answer")},
		{name: "first failure wins", runs: []*string{sptr("timelimit"), sptr("wrong-answer")}, want: sptr("timelimit")},
		{name: "failure overrides correct", runs: []*string{sptr("correct"), sptr("no-output")}, want: sptr("no-output")},
		{name: "unknown result", runs: []*string{sptr("bogus")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FinalResult(tt.runs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				require.Nil(t, got)
			} else {
				require.NotNil(t, got)
				require.Equal(t, *tt.want, *got)
			}
		})
	}
}

func leafNode(groupID uint, acceptScore *string, aggregation string, onRejectContinue bool) *GroupNode {
	return &GroupNode{Group: &models.TestcaseGroup{
		GroupID:          groupID,
		AcceptScore:      acceptScore,
		Aggregation:      aggregation,
		OnRejectContinue: onRejectContinue,
	}}
}

func run(result, score string) *models.JudgingRun {
	r := &models.JudgingRun{}
	if result != "" {
		r.RunResult = &result
		r.Score = &score
	}
	return r
}

func requireGroupOutcome(t *testing.T, node *GroupNode, runs map[uint][]*models.JudgingRun, wantScore, wantResult string) {
	t.Helper()
	score, result, err := EvaluateGroup(node, runs)
	require.NoError(t, err)
	require.NotNil(t, score)
	require.NotNil(t, result)
	require.Equal(t, wantScore, *score)
	require.Equal(t, wantResult, *result)
}

func requireGroupUndecided(t *testing.T, node *GroupNode, runs map[uint][]*models.JudgingRun) {
	t.Helper()
	score, result, err := EvaluateGroup(node, runs)
	require.NoError(t, err)
	require.Nil(t, score)
	require.Nil(t, result)
}

func TestEvaluateGroupAcceptScore(t *testing.T) {
	node := leafNode(1, sptr("25"), models.AggregationSum, false)

	requireGroupOutcome(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "1"), run("correct", "1")},
	}, "25.000000000", "correct")

	// A single failing testcase forfeits the whole accept score.
	requireGroupOutcome(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "1"), run("wrong-answer", "0")},
	}, "0.000000000", "wrong-answer")
}

func TestEvaluateGroupPending(t *testing.T) {
	node := leafNode(1, nil, models.AggregationSum, true)

	requireGroupUndecided(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "10"), run("", "")},
	})
}

func TestEvaluateGroupEarlyReject(t *testing.T) {
	// Without on-reject-continue the first failure finalizes the group
	// even though a run is still pending; the unfinished sum is dropped.
	node := leafNode(1, nil, models.AggregationSum, false)

	requireGroupOutcome(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "10"), run("run-error", "0"), run("", "")},
	}, "0.000000000", "run-error")
}

func TestEvaluateGroupSumPartial(t *testing.T) {
	node := leafNode(1, nil, models.AggregationSum, true)

	requireGroupOutcome(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "10"), run("wrong-answer", "0"), run("correct", "5")},
	}, "15.000000000", "wrong-answer")
}

func TestEvaluateGroupAverage(t *testing.T) {
	node := leafNode(1, nil, models.AggregationAvg, true)

	requireGroupOutcome(t, node, map[uint][]*models.JudgingRun{
		1: {run("correct", "10"), run("correct", "5"), run("correct", "5")},
	}, "6.666666667", "correct")
}

func TestEvaluateGroupMinMax(t *testing.T) {
	minNode := leafNode(1, nil, models.AggregationMin, true)
	maxNode := leafNode(1, nil, models.AggregationMax, true)
	runs := map[uint][]*models.JudgingRun{
		1: {run("correct", "10"), run("correct", "3"), run("correct", "7")},
	}

	requireGroupOutcome(t, minNode, runs, "3.000000000", "correct")
	requireGroupOutcome(t, maxNode, runs, "10.000000000", "correct")
}

func TestEvaluateGroupTree(t *testing.T) {
	root := &GroupNode{
		Group: &models.TestcaseGroup{GroupID: 1, Aggregation: models.AggregationSum, OnRejectContinue: true},
		Children: []*GroupNode{
			leafNode(2, sptr("40"), models.AggregationSum, false),
			leafNode(3, sptr("60"), models.AggregationSum, false),
		},
	}
	runs := map[uint][]*models.JudgingRun{
		2: {run("correct", "1")},
		3: {run("wrong-answer", "0")},
	}

	// The failing child still contributes its (zero) score.
	requireGroupOutcome(t, root, runs, "40.000000000", "wrong-answer")
}

func TestEvaluateGroupIgnoreSample(t *testing.T) {
	sample := leafNode(2, sptr("5"), models.AggregationSum, false)
	sample.Group.Name = "data/sample"
	secret := leafNode(3, sptr("50"), models.AggregationSum, false)

	root := &GroupNode{
		Group: &models.TestcaseGroup{
			GroupID:      1,
			Aggregation:  models.AggregationSum,
			IgnoreSample: true,
		},
		Children: []*GroupNode{sample, secret},
	}
	runs := map[uint][]*models.JudgingRun{
		2: {run("wrong-answer", "0")},
		3: {run("correct", "1")},
	}

	requireGroupOutcome(t, root, runs, "50.000000000", "correct")
}

func TestEvaluateGroupUnknownAggregation(t *testing.T) {
	node := leafNode(1, nil, "median", true)
	_, _, err := EvaluateGroup(node, map[uint][]*models.JudgingRun{
		1: {run("correct", "10")},
	})
	require.Error(t, err)
}

func TestBuildGroupTree(t *testing.T) {
	db, err := database.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	root := &models.TestcaseGroup{Name: "data", Aggregation: models.AggregationSum}
	require.NoError(t, database.CreateTestcaseGroup(db, root))
	child := &models.TestcaseGroup{Name: "data/secret", ParentID: &root.GroupID, Aggregation: models.AggregationSum}
	require.NoError(t, database.CreateTestcaseGroup(db, child))
	require.NoError(t, database.CreateTestcase(db, &models.Testcase{ProbID: 1, Rank: 1, GroupID: &child.GroupID}))

	tree, err := BuildGroupTree(db, root.GroupID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	require.Equal(t, "data/secret", tree.Children[0].Group.Name)
	require.Len(t, tree.Children[0].Testcases, 1)

	// A parent pointer back into the tree must be detected, not recursed.
	require.NoError(t, db.Model(&models.TestcaseGroup{}).
		Where("groupid = ?", root.GroupID).
		Update("parent_id", child.GroupID).Error)
	_, err = BuildGroupTree(db, root.GroupID)
	require.Error(t, err)
}
