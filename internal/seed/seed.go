// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"chainhire/internal/chain"
	"chainhire/internal/models"
	"chainhire/internal/repository"

	"gorm.io/gorm"
)

// Summary counts what a seed run created.
type Summary struct {
	Users        int `json:"users"`
	Jobs         int `json:"jobs"`
	Applications int `json:"applications"`
	Posts        int `json:"posts"`
	Likes        int `json:"likes"`
	Comments     int `json:"comments"`
	Shares       int `json:"shares"`
}

// Seeder writes a Plan's worth of demo data through the repositories, so
// interaction counters and announcement posts stay consistent.
type Seeder struct {
	db    *gorm.DB
	plan  Plan
	users repository.UserRepository
	jobs  repository.JobRepository
	apps  repository.ApplicationRepository
	posts repository.PostRepository
}

// New creates a seeder for db.
func New(db *gorm.DB, plan Plan) *Seeder {
	return &Seeder{
		db:    db,
		plan:  plan,
		users: repository.NewUserRepository(db),
		jobs:  repository.NewJobRepository(db),
		apps:  repository.NewApplicationRepository(db),
		posts: repository.NewPostRepository(db),
	}
}

// IsEmpty reports whether no user exists yet.
func IsEmpty(db *gorm.DB) (bool, error) {
	var n int64
	if err := db.Model(&models.User{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}

// Run seeds the database according to the plan.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if err := s.plan.Validate(); err != nil {
		return nil, err
	}
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.plan.Users, s.plan.Posts)

	if s.plan.Clean {
		if err := Clean(s.db); err != nil {
			return nil, err
		}
	}

	f, err := NewFactory(s.plan.RandomSeed, s.plan.Password)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}

	users, err := s.createUsers(ctx, f, sum)
	if err != nil {
		return sum, err
	}
	log.Printf("✓ %d users created", sum.Users)

	jobs, err := s.createJobs(ctx, f, users, sum)
	if err != nil {
		return sum, err
	}
	log.Printf("✓ %d jobs and %d applications created", sum.Jobs, sum.Applications)

	posts, err := s.createPosts(ctx, f, users, sum)
	if err != nil {
		return sum, err
	}
	posts = append(posts, jobs...)
	log.Printf("✓ %d posts created", sum.Posts)

	if err := s.createInteractions(ctx, f, users, posts, sum); err != nil {
		return sum, err
	}
	log.Printf("✓ %d likes, %d comments, %d shares created", sum.Likes, sum.Comments, sum.Shares)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

func (s *Seeder) createUsers(ctx context.Context, f *Factory, sum *Summary) ([]*models.User, error) {
	users := make([]*models.User, 0, s.plan.Users)
	for i := 0; i < s.plan.Users; i++ {
		u := f.User(i+1, s.plan.WalletEvery)
		if i == 0 && s.plan.AdminEmail != "" {
			email := s.plan.AdminEmail
			u.Email = &email
			u.IsAdmin = true
		}
		if err := s.users.Create(ctx, u); err != nil {
			return users, fmt.Errorf("create user %d: %w", i+1, err)
		}
		users = append(users, u)
		sum.Users++
	}
	return users, nil
}

// createJobs publishes jobs for the first plan.Employers users and returns their
// announcement posts.
func (s *Seeder) createJobs(ctx context.Context, f *Factory, users []*models.User, sum *Summary) ([]*models.Post, error) {
	fee := s.plan.FeeETH
	if fee == "" {
		fee = DefaultPlan().FeeETH
	}
	wei, err := chain.ParseEther(fee)
	if err != nil {
		return nil, fmt.Errorf("seed fee %q: %w", fee, err)
	}

	var announcements []*models.Post
	for _, employer := range users[:s.plan.Employers] {
		for j := 0; j < s.plan.JobsPerEmployer; j++ {
			hash := f.TxHash()
			job := f.Job(employer.ID, hash)
			payment := f.Payment(employer.ID, hash, fee, wei.String(), s.plan.ChainID)
			post := f.Announcement(job)
			if err := s.jobs.Publish(ctx, job, payment, post); err != nil {
				return announcements, fmt.Errorf("publish job: %w", err)
			}
			sum.Jobs++
			sum.Posts++
			announcements = append(announcements, post)

			if err := s.createApplications(ctx, f, job, users, sum); err != nil {
				return announcements, err
			}
		}
	}
	return announcements, nil
}

func (s *Seeder) createApplications(ctx context.Context, f *Factory, job *models.Job, users []*models.User, sum *Summary) error {
	n := f.Between(s.plan.MaxApplications)
	for _, i := range f.Indexes(len(users), n+1) {
		applicant := users[i]
		if applicant.ID == job.UserID || n == 0 {
			continue
		}
		n--
		app := &models.JobApplication{
			JobID:       job.ID,
			UserID:      applicant.ID,
			CoverLetter: f.CoverLetter(),
			Status:      models.ApplicationStatusPending,
		}
		if err := s.apps.Create(ctx, app); err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		sum.Applications++
	}
	return nil
}

func (s *Seeder) createPosts(ctx context.Context, f *Factory, users []*models.User, sum *Summary) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, s.plan.Posts)
	for i := 0; i < s.plan.Posts; i++ {
		author := users[f.Between(len(users)-1)]
		p := f.Post(author.ID, i/7+1)
		if err := s.posts.Create(ctx, p); err != nil {
			return posts, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
		sum.Posts++
		if (i+1)%100 == 0 {
			log.Printf("Created %d posts...", i+1)
		}
	}
	return posts, nil
}

func (s *Seeder) createInteractions(ctx context.Context, f *Factory, users []*models.User, posts []*models.Post, sum *Summary) error {
	for _, p := range posts {
		for _, i := range f.Indexes(len(users), f.Between(s.plan.MaxLikes)) {
			if _, _, err := s.posts.ToggleLike(ctx, p.ID, users[i].ID); err != nil {
				return fmt.Errorf("like post %d: %w", p.ID, err)
			}
			sum.Likes++
		}
		for n := f.Between(s.plan.MaxComments); n > 0; n-- {
			text := f.Comment()
			comment := &models.PostInteraction{
				PostID:      p.ID,
				UserID:      users[f.Between(len(users)-1)].ID,
				CommentText: &text,
			}
			if _, err := s.posts.AddComment(ctx, comment); err != nil {
				return fmt.Errorf("comment on post %d: %w", p.ID, err)
			}
			sum.Comments++
		}
		for n := f.Between(s.plan.MaxShares); n > 0; n-- {
			if _, err := s.posts.AddShare(ctx, p.ID, users[f.Between(len(users)-1)].ID); err != nil {
				return fmt.Errorf("share post %d: %w", p.ID, err)
			}
			sum.Shares++
		}
	}
	return nil
}

// Clean removes all rows from every application table.
func Clean(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")

	all := models.AllModels()
	tables := make([]string, 0, len(all))
	for _, m := range all {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("resolve table: %w", err)
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if db.Dialector.Name() == "postgres" {
		q := "TRUNCATE TABLE "
		for i, t := range tables {
			if i > 0 {
				q += ", "
			}
			q += t
		}
		return db.Exec(q + " RESTART IDENTITY CASCADE").Error
	}

	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %s: %w", tables[i], err)
		}
	}
	return nil
}
