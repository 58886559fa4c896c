package seed

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes how much demo data to create. Fields missing from a plan file
// keep their defaults.
type Plan struct {
	Users           int    `yaml:"users"`
	Employers       int    `yaml:"employers"`
	JobsPerEmployer int    `yaml:"jobs_per_employer"`
	Posts           int    `yaml:"posts"`
	MaxApplications int    `yaml:"max_applications_per_job"`
	MaxLikes        int    `yaml:"max_likes_per_post"`
	MaxComments     int    `yaml:"max_comments_per_post"`
	MaxShares       int    `yaml:"max_shares_per_post"`
	WalletEvery     int    `yaml:"wallet_every"`
	AdminEmail      string `yaml:"admin_email"`
	Password        string `yaml:"password"`
	FeeETH          string `yaml:"fee_eth"`
	ChainID         int64  `yaml:"chain_id"`
	RandomSeed      int64  `yaml:"random_seed"`
	Clean           bool   `yaml:"clean"`
}

// DefaultPlan is a small but complete demo: a few employers, active jobs with
// confirmed payments, and a busy feed.
func DefaultPlan() Plan {
	return Plan{
		Users:           20,
		Employers:       5,
		JobsPerEmployer: 2,
		Posts:           40,
		MaxApplications: 4,
		MaxLikes:        8,
		MaxComments:     4,
		MaxShares:       2,
		WalletEvery:     3,
		AdminEmail:      "admin@example.com",
		Password:        "password123",
		FeeETH:          "0.001",
		ChainID:         1,
	}
}

// Presets are named plans selectable from the seed command.
var Presets = map[string]Plan{
	"small": func() Plan {
		p := DefaultPlan()
		p.Users, p.Employers, p.JobsPerEmployer, p.Posts = 6, 2, 1, 10
		return p
	}(),
	"demo": DefaultPlan(),
	"large": func() Plan {
		p := DefaultPlan()
		p.Users, p.Employers, p.JobsPerEmployer, p.Posts = 200, 40, 3, 600
		p.MaxLikes, p.MaxComments = 30, 10
		return p
	}(),
}

// LoadPlan reads a YAML plan file on top of DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan()
	raw, err := os.ReadFile(path)
	if err != nil {
		return plan, fmt.Errorf("read seed plan: %w", err)
	}
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return plan, fmt.Errorf("parse seed plan %s: %w", path, err)
	}
	return plan, plan.Validate()
}

// Validate rejects plans that cannot be satisfied.
func (p Plan) Validate() error {
	if p.Users < 1 {
		return errors.New("seed plan needs at least one user")
	}
	if p.Employers < 0 || p.Employers > p.Users {
		return fmt.Errorf("employers must be between 0 and users (%d)", p.Users)
	}
	for name, v := range map[string]int{
		"jobs_per_employer":        p.JobsPerEmployer,
		"posts":                    p.Posts,
		"max_applications_per_job": p.MaxApplications,
		"max_likes_per_post":       p.MaxLikes,
		"max_comments_per_post":    p.MaxComments,
		"max_shares_per_post":      p.MaxShares,
		"wallet_every":             p.WalletEvery,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.Password == "" {
		return errors.New("seed plan needs a password for demo accounts")
	}
	return nil
}
