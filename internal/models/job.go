package models

import (
	"time"
)

// Job statuses.
const (
	JobStatusPendingPayment = "pending_payment"
	JobStatusActive         = "active"
	JobStatusClosed         = "closed"
)

// Job types offered by the posting form.
const (
	JobTypeFullTime  = "full-time"
	JobTypePartTime  = "part-time"
	JobTypeContract  = "contract"
	JobTypeFreelance = "freelance"
)

// BlockchainEthereum labels payments and jobs settled on Ethereum.
const BlockchainEthereum = "ethereum"

// Job is a paid job listing.
type Job struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	BudgetMin        *float64   `json:"budget_min,omitempty"`
	BudgetMax        *float64   `json:"budget_max,omitempty"`
	Currency         string     `gorm:"size:8;not null;default:USD" json:"currency"`
	Location         string     `gorm:"size:200" json:"location"`
	JobType          string     `gorm:"size:32;not null;default:full-time" json:"job_type"`
	RequiredSkills   StringList `json:"required_skills"`
	Tags             StringList `json:"tags"`
	PaymentConfirmed bool       `gorm:"not null;default:false" json:"payment_confirmed"`
	TransactionHash  *string    `gorm:"uniqueIndex;size:66" json:"transaction_hash,omitempty"`
	Blockchain       string     `gorm:"size:32" json:"blockchain,omitempty"`
	Status           string     `gorm:"size:32;not null;index" json:"status"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Poster           *Profile   `gorm:"foreignKey:UserID;references:UserID" json:"poster,omitempty"`
}

// IsOpen reports whether the job accepts applications.
func (j *Job) IsOpen() bool {
	return j.Status == JobStatusActive
}

// JobApplication statuses.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusReviewed = "reviewed"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

// JobApplication is one applicant's submission to a job.
type JobApplication struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	JobID       uint      `gorm:"not null;uniqueIndex:idx_job_applicant" json:"job_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_job_applicant;index" json:"user_id"`
	CoverLetter string    `gorm:"type:text" json:"cover_letter"`
	Status      string    `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Applicant   *Profile  `gorm:"foreignKey:UserID;references:UserID" json:"applicant,omitempty"`
	Job         *Job      `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

// SavedJob bookmarks a job for a user.
type SavedJob struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_saved_user_job" json:"user_id"`
	JobID     uint      `gorm:"not null;uniqueIndex:idx_saved_user_job" json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	Job       *Job      `gorm:"foreignKey:JobID" json:"job,omitempty"`
}
