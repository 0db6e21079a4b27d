package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen  string  `yaml:"listen"`
	Admin   Admin   `yaml:"admin"`
	Auth    Auth    `yaml:"auth"`
	CORS    CORS    `yaml:"cors"`
	Logger  Logger  `yaml:"logger"`
	Storage Storage `yaml:"storage"`
	Scoring Scoring `yaml:"scoring"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

type JWT struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// Admin configures the jury-facing server and its single operator account.
type Admin struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Scoring holds contest-wide scoring knobs that are not per-contest
// attributes: how to count penalties and at which granularity to score.
type Scoring struct {
	PenaltyTime          int  `yaml:"penalty_time"`
	ScoreInSeconds       bool `yaml:"score_in_seconds"`
	VerificationRequired bool `yaml:"verification_required"`
	CompilePenalty       bool `yaml:"compile_penalty"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Scoring.PenaltyTime == 0 {
		cfg.Scoring.PenaltyTime = 20
	}

	return &cfg, nil
}
