package scoreboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// almostInfinite bounds score key elements; ascending elements are inverted
// by subtracting from it.
var almostInfinite = decimal.RequireFromString("99999999999999999999999")

// ScoreKeyElement renders a non-negative value as a fixed-width string that
// sorts lexicographically: 23 digits, a dot, and 9 decimals, left-padded
// with zeros. Elements that must sort ascending are inverted.
func ScoreKeyElement(value decimal.Decimal, ascending bool) (string, error) {
	if value.GreaterThan(almostInfinite) {
		return "", fmt.Errorf("value %s is too large for a score key element", value)
	}
	if value.IsNegative() {
		return "", fmt.Errorf("no negative values allowed in a score key element, got %s", value)
	}
	if ascending {
		value = almostInfinite.Sub(value)
	}
	element := value.StringFixed(Scale)
	if len(element) < 33 {
		element = strings.Repeat("0", 33-len(element)) + element
	}
	return element, nil
}

// ICPCScoreKey builds the rank cache sort key for pass/fail contests: more
// solved wins, then lower total time, then earlier last solve.
func ICPCScoreKey(numSolved, totalTime, timeOfLastSolved int) (string, error) {
	elements := make([]string, 0, 3)
	for _, part := range []struct {
		value     int64
		ascending bool
	}{
		{int64(numSolved), false},
		{int64(totalTime), true},
		{int64(timeOfLastSolved), true},
	} {
		element, err := ScoreKeyElement(decimal.NewFromInt(part.value), part.ascending)
		if err != nil {
			return "", err
		}
		elements = append(elements, element)
	}
	return strings.Join(elements, ","), nil
}

// ScoringScoreKey builds the rank cache sort key for scoring contests:
// higher total score wins, then the earlier last score improvement.
func ScoringScoreKey(totalScore decimal.Decimal, timeOfLastScore int) (string, error) {
	scoreElement, err := ScoreKeyElement(totalScore, false)
	if err != nil {
		return "", err
	}
	timeElement, err := ScoreKeyElement(decimal.NewFromInt(int64(timeOfLastScore)), true)
	if err != nil {
		return "", err
	}
	return scoreElement + "," + timeElement, nil
}
