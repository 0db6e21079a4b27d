package database

import (
	"errors"

	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Contest CRUD
func CreateContest(db *gorm.DB, contest *models.Contest) error {
	return db.Create(contest).Error
}

func GetContest(db *gorm.DB, cid uint) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Where("cid = ?", cid).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

func GetContestByExternalID(db *gorm.DB, externalID string) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Where("external_id = ?", externalID).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

func GetAllContests(db *gorm.DB) ([]models.Contest, error) {
	var contests []models.Contest
	if err := db.Order("start_time").Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

func UpdateContest(db *gorm.DB, contest *models.Contest) error {
	return db.Save(contest).Error
}

// Team CRUD
func CreateTeam(db *gorm.DB, team *models.Team) error {
	return db.Create(team).Error
}

func GetTeam(db *gorm.DB, teamID uint) (*models.Team, error) {
	var team models.Team
	if err := db.Preload("Category").Preload("Affiliation").
		Where("teamid = ?", teamID).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// GetScoreboardTeams returns the enabled teams eligible for a scoreboard.
// Non-jury callers only see teams in visible categories. The remaining
// arguments narrow the selection; empty slices mean no filtering.
func GetScoreboardTeams(
	db *gorm.DB,
	contest *models.Contest,
	jury bool,
	affiliations []uint,
	countries []string,
	categories []uint,
	teamIDs []uint,
) ([]models.Team, error) {
	q := db.Model(&models.Team{}).
		Preload("Category").Preload("Affiliation").
		Joins("JOIN team_categories tc ON tc.categoryid = teams.categoryid").
		Where("teams.enabled = 1")

	if !jury {
		q = q.Where("tc.visible = 1")
	}
	if contest != nil && !contest.OpenToAllTeams {
		q = q.Joins("JOIN contest_teams ct ON ct.teamid = teams.teamid AND ct.cid = ?", contest.CID)
	}
	if len(affiliations) > 0 {
		q = q.Where("teams.affilid IN ?", affiliations)
	}
	if len(countries) > 0 {
		q = q.Joins("LEFT JOIN team_affiliations ta ON ta.affilid = teams.affilid").
			Where("ta.country IN ?", countries)
	}
	if len(categories) > 0 {
		q = q.Where("teams.categoryid IN ?", categories)
	}
	if len(teamIDs) > 0 {
		q = q.Where("teams.teamid IN ?", teamIDs)
	}

	var teams []models.Team
	if err := q.Order("teams.teamid").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func CreateContestTeam(db *gorm.DB, ct *models.ContestTeam) error {
	return db.Create(ct).Error
}

// Problem CRUD
func CreateProblem(db *gorm.DB, problem *models.Problem) error {
	return db.Create(problem).Error
}

func CreateContestProblem(db *gorm.DB, cp *models.ContestProblem) error {
	return db.Create(cp).Error
}

// GetContestProblems returns the contest's problems ordered by shortname.
// With onlySubmittable set, problems closed for submission are left out
// (used for display; cache maintenance covers all problems).
func GetContestProblems(db *gorm.DB, cid uint, onlySubmittable bool) ([]models.ContestProblem, error) {
	q := db.Preload("Problem").Where("cid = ?", cid)
	if onlySubmittable {
		q = q.Where("allow_submit = 1")
	}
	var problems []models.ContestProblem
	if err := q.Order("short_name").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

// Testcase groups
func CreateTestcaseGroup(db *gorm.DB, group *models.TestcaseGroup) error {
	return db.Create(group).Error
}

func CreateTestcase(db *gorm.DB, testcase *models.Testcase) error {
	return db.Create(testcase).Error
}

func GetTestcaseGroup(db *gorm.DB, groupID uint) (*models.TestcaseGroup, error) {
	var group models.TestcaseGroup
	if err := db.Where("groupid = ?", groupID).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func GetChildGroups(db *gorm.DB, parentID uint) ([]models.TestcaseGroup, error) {
	var groups []models.TestcaseGroup
	if err := db.Where("parent_id = ?", parentID).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func GetGroupTestcases(db *gorm.DB, groupID uint) ([]models.Testcase, error) {
	var testcases []models.Testcase
	if err := db.Where("groupid = ?", groupID).Order("rank").Find(&testcases).Error; err != nil {
		return nil, err
	}
	return testcases, nil
}

// Submission CRUD
func CreateSubmission(db *gorm.DB, sub *models.Submission) error {
	if sub.ExternalID == "" {
		sub.ExternalID = uuid.New().String()
	}
	return db.Create(sub).Error
}

func GetSubmission(db *gorm.DB, submitID uint) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Preload("Judgings").Preload("Judgings.Runs").
		Where("submitid = ?", submitID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func SetSubmissionValidity(db *gorm.DB, submitID uint, valid bool) error {
	return db.Model(&models.Submission{}).Where("submitid = ?", submitID).
		Update("valid", valid).Error
}

// GetScoringSubmissions returns the valid submissions of one team for one
// problem in submit-time order, each with its valid judging (and runs)
// preloaded. Submissions at or after contest end are excluded: they must
// neither count as pending nor as solved.
func GetScoringSubmissions(db *gorm.DB, cid, teamID, probID uint, endTime float64) ([]models.Submission, error) {
	var subs []models.Submission
	err := db.Preload("Judgings", "valid = 1").Preload("Judgings.Runs").
		Where("cid = ? AND teamid = ? AND probid = ?", cid, teamID, probID).
		Where("valid = 1").
		Where("submit_time < ?", endTime).
		Order("submit_time, submitid").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Judging CRUD
func CreateJudging(db *gorm.DB, judging *models.Judging) error {
	return db.Create(judging).Error
}

func GetJudging(db *gorm.DB, judgingID uint) (*models.Judging, error) {
	var judging models.Judging
	if err := db.Preload("Runs").Where("judgingid = ?", judgingID).
		First(&judging).Error; err != nil {
		return nil, err
	}
	return &judging, nil
}

func GetValidJudging(db *gorm.DB, submitID uint) (*models.Judging, error) {
	var judging models.Judging
	err := db.Preload("Runs").
		Where("submitid = ? AND valid = 1", submitID).First(&judging).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &judging, nil
}

func SetJudgingValidity(db *gorm.DB, judgingID uint, valid bool) error {
	return db.Model(&models.Judging{}).Where("judgingid = ?", judgingID).
		Update("valid", valid).Error
}

// InvalidateJudgings clears the valid flag on all judgings of a submission,
// in preparation for a superseding judging.
func InvalidateJudgings(db *gorm.DB, submitID uint) error {
	return db.Model(&models.Judging{}).Where("submitid = ?", submitID).
		Update("valid", false).Error
}

// CountEarlierPotentialSolves counts valid submissions for the same problem
// and category sort order, strictly earlier than the given time, that are
// either already correct or could still turn out correct (queued, pending,
// or unverified when verification is required). A zero count means the
// submission at submitTime was first to solve.
func CountEarlierPotentialSolves(
	db *gorm.DB,
	cid, probID uint,
	sortOrder int,
	submitTime float64,
	verificationRequired bool,
) (int64, error) {
	cond := "j.judgingid IS NULL OR j.result IS NULL OR j.result = ?"
	if verificationRequired {
		cond += " OR j.verified = 0"
	}

	var count int64
	err := db.Model(&models.Submission{}).
		Joins("LEFT JOIN judgings j ON j.submitid = submissions.submitid AND j.valid = 1").
		Joins("JOIN teams t ON t.teamid = submissions.teamid").
		Joins("JOIN team_categories tc ON tc.categoryid = t.categoryid").
		Where("submissions.valid = 1").
		Where("submissions.cid = ? AND submissions.probid = ?", cid, probID).
		Where("tc.sort_order = ?", sortOrder).
		Where("ROUND(submissions.submit_time, 4) < ?", submitTime).
		Where("("+cond+")", models.ResultCorrect).
		Count(&count).Error
	return count, err
}

// Score cache
func GetScoreCache(db *gorm.DB, cid uint, teamID *uint) ([]models.ScoreCache, error) {
	q := db.Where("cid = ?", cid)
	if teamID != nil {
		q = q.Where("teamid = ?", *teamID)
	}
	var rows []models.ScoreCache
	if err := q.Order("teamid, probid").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func UpsertScoreCache(db *gorm.DB, row *models.ScoreCache) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cid"}, {Name: "teamid"}, {Name: "probid"}},
		UpdateAll: true,
	}).Create(row).Error
}

// DeleteStaleScoreCache drops rows for teams or problems that are no longer
// part of the contest, after a full rebuild.
func DeleteStaleScoreCache(db *gorm.DB, cid uint, teamIDs, probIDs []uint) error {
	if err := db.Where("cid = ? AND probid NOT IN ?", cid, probIDs).
		Delete(&models.ScoreCache{}).Error; err != nil {
		return err
	}
	return db.Where("cid = ? AND teamid NOT IN ?", cid, teamIDs).
		Delete(&models.ScoreCache{}).Error
}

// Rank cache
func GetRankCache(db *gorm.DB, cid uint, teamID *uint) ([]models.RankCache, error) {
	q := db.Where("cid = ?", cid)
	if teamID != nil {
		q = q.Where("teamid = ?", *teamID)
	}
	var rows []models.RankCache
	if err := q.Order("teamid").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func UpsertRankCache(db *gorm.DB, row *models.RankCache) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cid"}, {Name: "teamid"}},
		UpdateAll: true,
	}).Create(row).Error
}

func DeleteStaleRankCache(db *gorm.DB, cid uint, teamIDs []uint) error {
	return db.Where("cid = ? AND teamid NOT IN ?", cid, teamIDs).
		Delete(&models.RankCache{}).Error
}

// CountBetterRanked counts rank cache rows in the same category sort order
// whose sort key beats the given one; the team's rank is that count plus one.
func CountBetterRanked(db *gorm.DB, cid uint, sortOrder int, sortKeyColumn, sortKey string) (int64, error) {
	var count int64
	err := db.Model(&models.RankCache{}).
		Joins("JOIN teams t ON t.teamid = rank_cache.teamid").
		Joins("JOIN team_categories tc ON tc.categoryid = t.categoryid").
		Where("rank_cache.cid = ?", cid).
		Where("tc.sort_order = ?", sortOrder).
		Where(sortKeyColumn+" > ?", sortKey).
		Count(&count).Error
	return count, err
}
