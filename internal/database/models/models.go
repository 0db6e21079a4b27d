package models

// Judging results as reported per testcase and per judging. An empty /
// missing result means the judging (or run) is still pending.
const (
	ResultCorrect       = "correct"
	ResultWrongAnswer   = "wrong-answer"
	ResultCompilerError = "compiler-error"
	ResultTimeLimit     = "timelimit"
	ResultRunError      = "run-error"
	ResultMemoryLimit   = "memory-limit"
	ResultOutputLimit   = "output-limit"
	ResultNoOutput      = "no-output"
	ResultJudgeError    = "judge-error"
)

// Scoreboard types: classic ICPC pass/fail or partial-credit scoring.
const (
	ScoreboardTypePassFail = "pass_fail"
	ScoreboardTypeScore    = "score"
)

// Testcase group aggregation modes.
const (
	AggregationSum = "sum"
	AggregationAvg = "avg"
	AggregationMin = "min"
	AggregationMax = "max"
)

// Contest timestamps are absolute Unix seconds with sub-second precision,
// matching the precision submissions are recorded at. Optional times are
// nil when not applicable.
type Contest struct {
	CID        uint   `gorm:"column:cid;primaryKey;autoIncrement" json:"cid"`
	ExternalID string `gorm:"uniqueIndex" json:"external_id"`
	Name       string `json:"name"`
	ShortName  string `json:"short_name"`

	ActivateTime     *float64 `json:"activate_time"`
	StartTime        float64  `json:"start_time"`
	StartTimeEnabled bool     `gorm:"default:true" json:"start_time_enabled"`
	FreezeTime       *float64 `json:"freeze_time"`
	EndTime          float64  `json:"end_time"`
	UnfreezeTime     *float64 `json:"unfreeze_time"`
	FinalizeTime     *float64 `json:"finalize_time"`
	DeactivateTime   *float64 `json:"deactivate_time"`

	ScoreboardType string `gorm:"default:pass_fail" json:"scoreboard_type"`
	PenaltyTime    int    `gorm:"default:20" json:"penalty_time"`
	BronzeMedals   int    `gorm:"default:4" json:"bronze_medals"`
	OpenToAllTeams bool   `gorm:"default:true" json:"open_to_all_teams"`
}

type TeamCategory struct {
	CategoryID uint   `gorm:"column:categoryid;primaryKey;autoIncrement" json:"category_id"`
	Name       string `json:"name"`
	SortOrder  int    `gorm:"default:0" json:"sort_order"`
	Color      string `json:"color"`
	Visible    bool   `gorm:"default:true" json:"visible"`
}

type TeamAffiliation struct {
	AffilID uint   `gorm:"column:affilid;primaryKey;autoIncrement" json:"affil_id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type Team struct {
	TeamID      uint   `gorm:"column:teamid;primaryKey;autoIncrement" json:"team_id"`
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`

	CategoryID    uint             `gorm:"column:categoryid;index" json:"category_id"`
	Category      *TeamCategory    `gorm:"foreignKey:CategoryID;references:CategoryID" json:"category,omitempty"`
	AffiliationID *uint            `gorm:"column:affilid" json:"affiliation_id"`
	Affiliation   *TeamAffiliation `gorm:"foreignKey:AffiliationID;references:AffilID" json:"affiliation,omitempty"`

	Enabled bool `gorm:"default:true" json:"enabled"`
	// Penalty seeds the team's total time, e.g. for imposed time penalties.
	Penalty int `gorm:"default:0" json:"penalty"`
}

// EffectiveName is the name shown on the scoreboard.
func (t *Team) EffectiveName() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

type Problem struct {
	ProbID     uint    `gorm:"column:probid;primaryKey;autoIncrement" json:"prob_id"`
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	TimeLimit  float64 `gorm:"default:1" json:"time_limit"`

	// Scoring marks partial-credit problems. These carry a testcase group
	// tree rooted at ParentGroupID.
	Scoring       bool  `gorm:"default:false" json:"scoring"`
	ParentGroupID *uint `gorm:"column:parent_group_id" json:"parent_group_id"`
}

// ContestProblem attaches a problem to a contest under a short label.
type ContestProblem struct {
	CID    uint `gorm:"column:cid;primaryKey;autoIncrement:false" json:"cid"`
	ProbID uint `gorm:"column:probid;primaryKey;autoIncrement:false" json:"prob_id"`

	Problem *Problem `gorm:"foreignKey:ProbID;references:ProbID" json:"problem,omitempty"`

	ShortName   string `json:"short_name"`
	Points      int    `gorm:"default:1" json:"points"`
	AllowSubmit bool   `gorm:"default:true" json:"allow_submit"`
}

// ContestTeam registers a team for a contest that is not open to all teams.
type ContestTeam struct {
	CID    uint `gorm:"column:cid;primaryKey;autoIncrement:false" json:"cid"`
	TeamID uint `gorm:"column:teamid;primaryKey;autoIncrement:false" json:"team_id"`
}

// TestcaseGroup is a node in a scoring problem's aggregation tree. Leaves
// hold testcases; inner nodes hold child groups. AcceptScore, when set on a
// leaf, replaces the per-testcase sum iff all of the group's testcases pass.
type TestcaseGroup struct {
	GroupID  uint   `gorm:"column:groupid;primaryKey;autoIncrement" json:"group_id"`
	Name     string `json:"name"`
	ParentID *uint  `gorm:"column:parent_id;index" json:"parent_id"`

	// AcceptScore is a fixed-point decimal string at scale 9.
	AcceptScore *string `gorm:"type:text" json:"accept_score"`
	Aggregation string  `gorm:"default:sum" json:"aggregation"`

	// OnRejectContinue keeps evaluating sibling testcases after a reject.
	// When false the group's verdict is final as soon as one fails.
	OnRejectContinue bool `gorm:"default:false" json:"on_reject_continue"`
	IgnoreSample     bool `gorm:"default:false" json:"ignore_sample"`
}

type Testcase struct {
	TestcaseID  uint   `gorm:"column:testcaseid;primaryKey;autoIncrement" json:"testcase_id"`
	ProbID      uint   `gorm:"column:probid;index" json:"prob_id"`
	Rank        int    `json:"rank"`
	GroupID     *uint  `gorm:"column:groupid;index" json:"group_id"`
	Description string `json:"description"`
}

type Submission struct {
	SubmitID   uint   `gorm:"column:submitid;primaryKey;autoIncrement" json:"submit_id"`
	ExternalID string `gorm:"uniqueIndex" json:"external_id"`

	CID    uint `gorm:"column:cid;index" json:"cid"`
	TeamID uint `gorm:"column:teamid;index" json:"team_id"`
	ProbID uint `gorm:"column:probid;index" json:"prob_id"`

	LanguageID string  `json:"language_id"`
	SubmitTime float64 `gorm:"index" json:"submit_time"`

	// Valid is cleared when a submission is superseded or withdrawn;
	// invalid submissions never count toward scoring.
	Valid bool `gorm:"default:true" json:"valid"`

	Judgings []Judging `gorm:"foreignKey:SubmitID" json:"judgings,omitempty"`
}

// Judging is one evaluation of a submission. Exactly one judging per
// submission is valid at a time; rejudgings create a new valid judging and
// clear the old one's flag.
type Judging struct {
	JudgingID uint `gorm:"column:judgingid;primaryKey;autoIncrement" json:"judging_id"`
	SubmitID  uint `gorm:"column:submitid;index" json:"submit_id"`
	CID       uint `gorm:"column:cid;index" json:"cid"`

	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`

	// Result is nil while the judging is pending.
	Result   *string `json:"result"`
	Verified bool    `gorm:"default:false" json:"verified"`
	Valid    bool    `gorm:"default:true" json:"valid"`

	// Score is the aggregated decimal score for scoring contests.
	Score      *string `gorm:"type:text" json:"score"`
	JuryMember string  `json:"jury_member"`

	Runs []JudgingRun `gorm:"foreignKey:JudgingID" json:"runs,omitempty"`
}

// ValidJudging returns the submission's single valid judging, or nil while
// the submission is queued (or all its judgings were superseded).
func (s *Submission) ValidJudging() *Judging {
	for i := range s.Judgings {
		if s.Judgings[i].Valid {
			return &s.Judgings[i]
		}
	}
	return nil
}

// MaxRuntime returns the slowest run of a judging in seconds.
func (j *Judging) MaxRuntime() float64 {
	var max float64
	for i := range j.Runs {
		if j.Runs[i].Runtime > max {
			max = j.Runs[i].Runtime
		}
	}
	return max
}

type JudgingRun struct {
	RunID      uint `gorm:"column:runid;primaryKey;autoIncrement" json:"run_id"`
	JudgingID  uint `gorm:"column:judgingid;index" json:"judging_id"`
	TestcaseID uint `gorm:"column:testcaseid;index" json:"testcase_id"`

	RunResult *string `json:"run_result"`
	// Score is the per-testcase decimal score for scoring contests.
	Score   *string `gorm:"type:text" json:"score"`
	Runtime float64 `json:"runtime"`
	EndTime float64 `json:"end_time"`
}

// ScoreCache is the per-(contest, team, problem) scoring row, kept for two
// perspectives: restricted (jury, sees everything) and public (frozen
// results withheld). Restricted counts are always a superset of public ones.
type ScoreCache struct {
	CID    uint `gorm:"column:cid;primaryKey;autoIncrement:false" json:"cid"`
	TeamID uint `gorm:"column:teamid;primaryKey;autoIncrement:false" json:"team_id"`
	ProbID uint `gorm:"column:probid;primaryKey;autoIncrement:false" json:"prob_id"`

	SubmissionsRestricted int     `gorm:"default:0" json:"submissions_restricted"`
	PendingRestricted     int     `gorm:"default:0" json:"pending_restricted"`
	SolveTimeRestricted   float64 `gorm:"default:0" json:"solve_time_restricted"`
	RuntimeRestricted     int     `gorm:"default:0" json:"runtime_restricted"`
	IsCorrectRestricted   bool    `gorm:"default:false" json:"is_correct_restricted"`
	ScoreRestricted       string  `gorm:"type:text;default:0" json:"score_restricted"`

	SubmissionsPublic int     `gorm:"default:0" json:"submissions_public"`
	PendingPublic     int     `gorm:"default:0" json:"pending_public"`
	SolveTimePublic   float64 `gorm:"default:0" json:"solve_time_public"`
	RuntimePublic     int     `gorm:"default:0" json:"runtime_public"`
	IsCorrectPublic   bool    `gorm:"default:false" json:"is_correct_public"`
	ScorePublic       string  `gorm:"type:text;default:0" json:"score_public"`

	IsFirstToSolve bool `gorm:"default:false" json:"is_first_to_solve"`
}

func (ScoreCache) TableName() string { return "score_cache" }

func (s *ScoreCache) Submissions(restricted bool) int {
	if restricted {
		return s.SubmissionsRestricted
	}
	return s.SubmissionsPublic
}

func (s *ScoreCache) Pending(restricted bool) int {
	if restricted {
		return s.PendingRestricted
	}
	return s.PendingPublic
}

func (s *ScoreCache) SolveTime(restricted bool) float64 {
	if restricted {
		return s.SolveTimeRestricted
	}
	return s.SolveTimePublic
}

func (s *ScoreCache) Runtime(restricted bool) int {
	if restricted {
		return s.RuntimeRestricted
	}
	return s.RuntimePublic
}

func (s *ScoreCache) IsCorrect(restricted bool) bool {
	if restricted {
		return s.IsCorrectRestricted
	}
	return s.IsCorrectPublic
}

func (s *ScoreCache) Score(restricted bool) string {
	if restricted {
		return s.ScoreRestricted
	}
	return s.ScorePublic
}

// RankCache is the per-(contest, team) aggregate derived from ScoreCache,
// including a lexicographically sortable key so ordering needs no extra
// computation at read time.
type RankCache struct {
	CID    uint `gorm:"column:cid;primaryKey;autoIncrement:false" json:"cid"`
	TeamID uint `gorm:"column:teamid;primaryKey;autoIncrement:false" json:"team_id"`

	PointsRestricted       int    `gorm:"default:0" json:"points_restricted"`
	TotalTimeRestricted    int    `gorm:"default:0" json:"total_time_restricted"`
	TotalRuntimeRestricted int    `gorm:"default:0" json:"total_runtime_restricted"`
	ScoreRestricted        string `gorm:"type:text;default:0" json:"score_restricted"`
	SortKeyRestricted      string `gorm:"type:varchar(512)" json:"sort_key_restricted"`

	PointsPublic       int    `gorm:"default:0" json:"points_public"`
	TotalTimePublic    int    `gorm:"default:0" json:"total_time_public"`
	TotalRuntimePublic int    `gorm:"default:0" json:"total_runtime_public"`
	ScorePublic        string `gorm:"type:text;default:0" json:"score_public"`
	SortKeyPublic      string `gorm:"type:varchar(512)" json:"sort_key_public"`
}

func (RankCache) TableName() string { return "rank_cache" }

func (r *RankCache) Points(restricted bool) int {
	if restricted {
		return r.PointsRestricted
	}
	return r.PointsPublic
}

func (r *RankCache) TotalTime(restricted bool) int {
	if restricted {
		return r.TotalTimeRestricted
	}
	return r.TotalTimePublic
}

func (r *RankCache) TotalRuntime(restricted bool) int {
	if restricted {
		return r.TotalRuntimeRestricted
	}
	return r.TotalRuntimePublic
}

func (r *RankCache) Score(restricted bool) string {
	if restricted {
		return r.ScoreRestricted
	}
	return r.ScorePublic
}

func (r *RankCache) SortKey(restricted bool) string {
	if restricted {
		return r.SortKeyRestricted
	}
	return r.SortKeyPublic
}
