package scoreboard

import (
	"fmt"

	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Scale is the number of decimal places used for all score arithmetic.
const Scale = 9

// resultPriority orders judging results for determining a final verdict.
// A correct run can never override a failure, and among failures the first
// one (in testcase order) wins.
var resultPriority = map[string]int{
	models.ResultCorrect:       1,
	models.ResultWrongAnswer:   99,
	models.ResultTimeLimit:     99,
	models.ResultRunError:      99,
	models.ResultMemoryLimit:   99,
	models.ResultOutputLimit:   99,
	models.ResultNoOutput:      99,
	models.ResultCompilerError: 99,
	models.ResultJudgeError:    99,
}

const maxResultPriority = 99

// FinalResult determines the final result for a judging given the run
// results in testcase order. Runs that have not finished yet are nil. A nil
// return means no final result can be determined yet.
func FinalResult(runResults []*string) (*string, error) {
	var best *string
	bestPriority := -1
	haveNil := false

	for _, result := range runResults {
		if result == nil {
			haveNil = true
			break
		}
		priority, ok := resultPriority[*result]
		if !ok {
			return nil, fmt.Errorf("unknown result %q", *result)
		}
		if priority > bestPriority {
			best = result
			bestPriority = priority
		}
	}

	if haveNil && bestPriority < maxResultPriority {
		return nil, nil
	}
	return best, nil
}

// GroupNode is one node of a problem's testcase group tree, with its child
// groups and the testcases attached directly to it.
type GroupNode struct {
	Group     *models.TestcaseGroup
	Children  []*GroupNode
	Testcases []models.Testcase
}

// BuildGroupTree loads the testcase group tree rooted at the given group.
func BuildGroupTree(db *gorm.DB, rootID uint) (*GroupNode, error) {
	return buildGroupNode(db, rootID, map[uint]bool{})
}

func buildGroupNode(db *gorm.DB, groupID uint, visited map[uint]bool) (*GroupNode, error) {
	if visited[groupID] {
		return nil, fmt.Errorf("testcase group %d: cycle in group tree", groupID)
	}
	visited[groupID] = true

	group, err := database.GetTestcaseGroup(db, groupID)
	if err != nil {
		return nil, fmt.Errorf("load testcase group %d: %w", groupID, err)
	}
	node := &GroupNode{Group: group}

	children, err := database.GetChildGroups(db, groupID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		child, err := buildGroupNode(db, children[i].GroupID, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	node.Testcases, err = database.GetGroupTestcases(db, groupID)
	if err != nil {
		return nil, err
	}
	if len(node.Children) == 0 && len(node.Testcases) == 0 {
		return nil, fmt.Errorf("testcase group %d (%s) has neither child groups nor testcases", groupID, group.Name)
	}
	return node, nil
}

// RunsByGroup maps judging runs to the testcase group of their testcase.
func RunsByGroup(db *gorm.DB, judging *models.Judging) (map[uint][]*models.JudgingRun, error) {
	byGroup := map[uint][]*models.JudgingRun{}
	for i := range judging.Runs {
		run := &judging.Runs[i]
		var testcase models.Testcase
		if err := db.Where("testcaseid = ?", run.TestcaseID).First(&testcase).Error; err != nil {
			return nil, fmt.Errorf("load testcase %d: %w", run.TestcaseID, err)
		}
		if testcase.GroupID != nil {
			byGroup[*testcase.GroupID] = append(byGroup[*testcase.GroupID], run)
		}
	}
	return byGroup, nil
}

// EvaluateGroup computes the score and result of a testcase group from the
// runs of one judging, recursing into child groups. It returns (nil, nil)
// when the outcome cannot be determined yet. A group finalizes either when
// all underlying verdicts are in, or as soon as something failed and the
// group is not configured to continue on rejection.
func EvaluateGroup(node *GroupNode, runsByGroup map[uint][]*models.JudgingRun) (*string, *string, error) {
	allReady := true
	allCorrect := true
	var firstIncorrect *string
	var results []*string

	noteResult := func(result string) {
		if result != models.ResultCorrect {
			allCorrect = false
			if firstIncorrect == nil {
				r := result
				firstIncorrect = &r
			}
		}
	}

	if len(node.Children) == 0 {
		runs := runsByGroup[node.Group.GroupID]
		if node.Group.AcceptScore != nil {
			for _, run := range runs {
				if run.RunResult == nil || *run.RunResult == "" {
					allReady = false
				} else {
					noteResult(*run.RunResult)
				}
			}
			if len(runs) > 0 {
				if allCorrect {
					results = append(results, node.Group.AcceptScore)
				} else {
					zero := "0"
					results = append(results, &zero)
				}
			}
		} else {
			for _, run := range runs {
				results = append(results, run.Score)
				if run.RunResult == nil || *run.RunResult == "" {
					allReady = false
				} else {
					noteResult(*run.RunResult)
				}
			}
		}
	} else {
		for _, child := range node.Children {
			if node.Group.IgnoreSample && child.Group.Name == "data/sample" {
				continue
			}
			childScore, childResult, err := EvaluateGroup(child, runsByGroup)
			if err != nil {
				return nil, nil, err
			}
			if childResult == nil || *childResult == "" {
				allReady = false
			} else {
				// Child scores always count, also when the child failed
				// (partial scoring).
				results = append(results, childScore)
				noteResult(*childResult)
			}
		}
	}

	var score *decimal.Decimal
	switch node.Group.Aggregation {
	case models.AggregationSum, models.AggregationAvg:
		sum := decimal.Zero
		complete := true
		for _, result := range results {
			if result == nil {
				allReady = false
				complete = false
				break
			}
			value, err := decimal.NewFromString(*result)
			if err != nil {
				return nil, nil, fmt.Errorf("testcase group %d: bad score %q: %w", node.Group.GroupID, *result, err)
			}
			sum = sum.Add(value)
		}
		if complete {
			if node.Group.Aggregation == models.AggregationAvg && len(results) > 0 {
				sum = sum.DivRound(decimal.NewFromInt(int64(len(results))), Scale)
			}
			score = &sum
		}
	case models.AggregationMin, models.AggregationMax:
		for _, result := range results {
			if result == nil {
				allReady = false
				break
			}
			value, err := decimal.NewFromString(*result)
			if err != nil {
				return nil, nil, fmt.Errorf("testcase group %d: bad score %q: %w", node.Group.GroupID, *result, err)
			}
			if score == nil {
				score = &value
			} else if node.Group.Aggregation == models.AggregationMin && value.LessThan(*score) {
				score = &value
			} else if node.Group.Aggregation == models.AggregationMax && value.GreaterThan(*score) {
				score = &value
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown testcase aggregation type %q", node.Group.Aggregation)
	}

	if allReady || (!allCorrect && !node.Group.OnRejectContinue) {
		value := decimal.Zero
		if score != nil {
			value = *score
		}
		scoreStr := value.StringFixed(Scale)
		result := models.ResultCorrect
		if !allCorrect {
			if firstIncorrect != nil {
				result = *firstIncorrect
			} else {
				result = models.ResultJudgeError
			}
		}
		return &scoreStr, &result, nil
	}
	return nil, nil, nil
}
