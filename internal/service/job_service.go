package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"chainhire/internal/chain"
	"chainhire/internal/featureflags"
	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/observability"
	"chainhire/internal/repository"
	"chainhire/internal/validation"

	"gorm.io/gorm"
)

const (
	maxCoverLetterLen = 5000
	defaultPageSize   = 50
	maxPageSize       = 100
)

type JobService struct {
	jobs     repository.JobRepository
	apps     repository.ApplicationRepository
	saved    repository.SavedJobRepository
	payments repository.PaymentRepository
	profiles repository.ProfileRepository
	payer    *PaymentService
	flags    *featureflags.Manager
	events   EventPublisher
}

// CreateJobInput is the job posting form plus the fee transaction.
type CreateJobInput struct {
	UserID          uint     `json:"-"`
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"required,max=20000"`
	BudgetMin       *float64 `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax       *float64 `json:"budget_max" validate:"omitempty,gte=0"`
	Currency        string   `json:"currency" validate:"omitempty,max=8"`
	Location        string   `json:"location" validate:"max=200"`
	JobType         string   `json:"job_type" validate:"omitempty,oneof=full-time part-time contract freelance"`
	RequiredSkills  []string `json:"required_skills" validate:"max=30"`
	Tags            []string `json:"tags" validate:"max=20"`
	TransactionHash string   `json:"transaction_hash"`
}

// CreateJobResult is the outcome of a posting. Status is active or pending_payment.
type CreateJobResult struct {
	Status  string          `json:"status"`
	Job     *models.Job     `json:"job"`
	Payment *models.Payment `json:"payment,omitempty"`
	Post    *models.Post    `json:"post,omitempty"`
}

func NewJobService(
	jobs repository.JobRepository,
	apps repository.ApplicationRepository,
	saved repository.SavedJobRepository,
	payments repository.PaymentRepository,
	profiles repository.ProfileRepository,
	payer *PaymentService,
	flags *featureflags.Manager,
	events EventPublisher,
) *JobService {
	return &JobService{
		jobs:     jobs,
		apps:     apps,
		saved:    saved,
		payments: payments,
		profiles: profiles,
		payer:    payer,
		flags:    flags,
		events:   eventsOrNoop(events),
	}
}

func (s *JobService) ListJobs(ctx context.Context, f repository.JobFilter) ([]*models.Job, error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Tag = strings.TrimSpace(f.Tag)
	if f.JobType != "" && !validJobType(f.JobType) {
		return nil, models.NewValidationError("job_type must be one of: full-time, part-time, contract, freelance")
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return s.jobs.ListActive(ctx, f)
}

// GetJob returns an active or closed job. Jobs awaiting payment are visible to their poster only.
func (s *JobService) GetJob(ctx context.Context, viewerID, id uint) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Job", id)
	}
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusPendingPayment && job.UserID != viewerID {
		return nil, models.NewNotFoundError("Job", id)
	}
	return job, nil
}

func (s *JobService) ListMyJobs(ctx context.Context, userID uint) ([]*models.Job, error) {
	return s.jobs.ListByUser(ctx, userID)
}

// CreateJob publishes a job once its posting fee is verified on-chain.
func (s *JobService) CreateJob(ctx context.Context, in CreateJobInput) (*CreateJobResult, error) {
	job, err := s.buildJob(in)
	if err != nil {
		return nil, err
	}

	if s.flags != nil && s.flags.Enabled(featureflags.FreeJobPosts, in.UserID) {
		job.Status = models.JobStatusActive
		post := jobAnnouncement(job)
		if err := s.jobs.Publish(ctx, job, nil, post); err != nil {
			return nil, err
		}
		observability.JobsPosted.WithLabelValues(job.Status).Inc()
		announceJob(ctx, s.events, job, nil, post)
		return &CreateJobResult{Status: job.Status, Job: job, Post: post}, nil
	}

	if strings.TrimSpace(in.TransactionHash) == "" {
		return nil, models.NewPaymentRequiredError("A job posting payment is required", nil)
	}
	hash, err := chain.NormalizeTxHash(in.TransactionHash)
	if err != nil {
		return nil, models.NewValidationError("transaction_hash must be a 0x-prefixed 32-byte hex hash")
	}

	if _, err := s.payments.GetByHash(ctx, hash); err == nil {
		return nil, models.NewConflictError("This transaction has already been used to pay for a job")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	expectedFrom, err := s.expectedSender(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	res, err := s.payer.Verify(ctx, hash, expectedFrom)
	if err != nil {
		return nil, models.NewUpstreamError("Could not verify the payment transaction", err)
	}

	payment := s.payer.newPayment(in.UserID, hash, res)
	if payment.FromAddress == "" {
		payment.FromAddress = expectedFrom
	}

	switch res.Status {
	case chain.StatusFailed:
		if err := s.payments.Create(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, models.NewConflictError("This transaction has already been used to pay for a job")
			}
			return nil, err
		}
		s.events.PublishUser(ctx, in.UserID, notifications.EventPaymentFailed, map[string]any{
			"payment_id":       payment.ID,
			"transaction_hash": hash,
			"reason":           res.Reason,
		})
		return nil, models.NewPaymentRequiredError("Payment verification failed", errors.New(res.Reason))

	case chain.StatusPending:
		job.Status = models.JobStatusPendingPayment
		job.TransactionHash = &hash
		job.Blockchain = models.BlockchainEthereum
		if err := s.publish(ctx, job, payment, nil); err != nil {
			return nil, err
		}
		return &CreateJobResult{Status: job.Status, Job: job, Payment: payment}, nil

	default:
		job.Status = models.JobStatusActive
		job.PaymentConfirmed = true
		job.TransactionHash = &hash
		job.Blockchain = models.BlockchainEthereum
		post := jobAnnouncement(job)
		if err := s.publish(ctx, job, payment, post); err != nil {
			return nil, err
		}
		announceJob(ctx, s.events, job, payment, post)
		return &CreateJobResult{Status: job.Status, Job: job, Payment: payment, Post: post}, nil
	}
}

func (s *JobService) publish(ctx context.Context, job *models.Job, payment *models.Payment, post *models.Post) error {
	if err := s.jobs.Publish(ctx, job, payment, post); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.NewConflictError("This transaction has already been used to pay for a job")
		}
		return err
	}
	observability.JobsPosted.WithLabelValues(job.Status).Inc()
	return nil
}

// expectedSender is the user's linked MetaMask wallet, or "" when none is linked.
func (s *JobService) expectedSender(ctx context.Context, userID uint) (string, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if profile.WalletType != models.WalletTypeMetaMask {
		return "", nil
	}
	return profile.Wallet(), nil
}

func (s *JobService) buildJob(in CreateJobInput) (*models.Job, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		return nil, models.NewValidationError("budget_min must not exceed budget_max")
	}
	for _, list := range [][]string{in.RequiredSkills, in.Tags} {
		for _, item := range list {
			if utf8.RuneCountInString(strings.TrimSpace(item)) > maxSkillLen {
				return nil, models.NewValidationError("Skills and tags must be at most 50 characters")
			}
		}
	}

	jobType := in.JobType
	if jobType == "" {
		jobType = models.JobTypeFullTime
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &models.Job{
		UserID:         in.UserID,
		Title:          in.Title,
		Description:    in.Description,
		BudgetMin:      in.BudgetMin,
		BudgetMax:      in.BudgetMax,
		Currency:       currency,
		Location:       in.Location,
		JobType:        jobType,
		RequiredSkills: models.StringList(validation.NormalizeList(in.RequiredSkills)),
		Tags:           models.StringList(validation.NormalizeList(in.Tags)),
	}, nil
}

// Apply records an application to an active job.
func (s *JobService) Apply(ctx context.Context, userID, jobID uint, coverLetter string) (*models.JobApplication, error) {
	coverLetter = strings.TrimSpace(coverLetter)
	if utf8.RuneCountInString(coverLetter) > maxCoverLetterLen {
		return nil, models.NewValidationError("Cover letter too long (max 5000 characters)")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Job", jobID)
	}
	if err != nil {
		return nil, err
	}
	if !job.IsOpen() {
		return nil, models.NewValidationError("This job is not accepting applications")
	}
	if job.UserID == userID {
		return nil, models.NewValidationError("You cannot apply to your own job")
	}

	app := &models.JobApplication{
		JobID:       jobID,
		UserID:      userID,
		CoverLetter: coverLetter,
		Status:      models.ApplicationStatusPending,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError("You have already applied to this job")
		}
		return nil, err
	}

	s.events.PublishUser(ctx, job.UserID, notifications.EventApplicationReceived, map[string]any{
		"job_id":         job.ID,
		"job_title":      job.Title,
		"application_id": app.ID,
		"applicant_id":   userID,
	})
	return app, nil
}

// ListApplications returns a job's applications to its poster.
func (s *JobService) ListApplications(ctx context.Context, userID, jobID uint) ([]*models.JobApplication, error) {
	if _, err := s.ownedJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	return s.apps.ListByJob(ctx, jobID)
}

func (s *JobService) ListMyApplications(ctx context.Context, userID uint) ([]*models.JobApplication, error) {
	return s.apps.ListByUser(ctx, userID)
}

func (s *JobService) SaveJob(ctx context.Context, userID, jobID uint) error {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return err
	}
	return s.saved.Save(ctx, userID, jobID)
}

func (s *JobService) UnsaveJob(ctx context.Context, userID, jobID uint) error {
	return s.saved.Remove(ctx, userID, jobID)
}

func (s *JobService) ListSavedJobs(ctx context.Context, userID uint) ([]*models.SavedJob, error) {
	return s.saved.List(ctx, userID)
}

// CloseJob stops a job from accepting applications. Only its poster may close it.
func (s *JobService) CloseJob(ctx context.Context, userID, jobID uint) (*models.Job, error) {
	job, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusClosed {
		return job, nil
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusClosed); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusClosed
	return job, nil
}

func (s *JobService) ownedJob(ctx context.Context, userID, jobID uint) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Job", jobID)
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, models.NewForbiddenError("Only the job poster can do this")
	}
	return job, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validJobType(t string) bool {
	switch t {
	case models.JobTypeFullTime, models.JobTypePartTime, models.JobTypeContract, models.JobTypeFreelance:
		return true
	}
	return false
}

// jobAnnouncement is the feed post generated for a newly active job.
func jobAnnouncement(job *models.Job) *models.Post {
	content := "🚀 New job posted: " + job.Title
	if job.Location != "" {
		content += " in " + job.Location
	}
	return &models.Post{
		UserID:  job.UserID,
		Content: content,
		Type:    models.PostTypeJob,
		Tags:    append(models.StringList{}, job.Tags...),
	}
}

func announceJob(ctx context.Context, events EventPublisher, job *models.Job, payment *models.Payment, post *models.Post) {
	payload := map[string]any{
		"job_id":     job.ID,
		"title":      job.Title,
		"poster_id":  job.UserID,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if post != nil {
		payload["post_id"] = post.ID
	}
	events.PublishBroadcast(ctx, notifications.EventJobPosted, payload)

	if payment != nil {
		events.PublishUser(ctx, job.UserID, notifications.EventPaymentConfirmed, map[string]any{
			"payment_id":       payment.ID,
			"job_id":           job.ID,
			"transaction_hash": payment.TransactionHash,
			"explorer_url":     payment.ExplorerURL,
		})
	}
}
