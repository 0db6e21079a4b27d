package database

import (
	"os"
	"path/filepath"

	"github.com/DOMjudge/scorekeeper/internal/database/models"
	"go.uber.org/zap"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Init(dsn string) (*gorm.DB, error) {
	if dsn != ":memory:" {
		if _, err := os.Stat(dsn); os.IsNotExist(err) {
			zap.S().Infof("database file not found at '%s', creating directory for it.", dsn)
			dbDir := filepath.Dir(dsn)
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all scoring entities, including
// the score_cache and rank_cache tables this engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Contest{},
		&models.TeamCategory{},
		&models.TeamAffiliation{},
		&models.Team{},
		&models.Problem{},
		&models.ContestProblem{},
		&models.ContestTeam{},
		&models.TestcaseGroup{},
		&models.Testcase{},
		&models.Submission{},
		&models.Judging{},
		&models.JudgingRun{},
		&models.ScoreCache{},
		&models.RankCache{},
	)
}
