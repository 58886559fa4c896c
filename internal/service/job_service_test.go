package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"chainhire/internal/chain"
	"chainhire/internal/featureflags"
	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	testFee    = big.NewInt(1_000_000_000_000_000)
	testWallet = "0x2222222222222222222222222222222222222222"
	testHash   = "0x" + strings.Repeat("ab", 32)
)

type jobFixture struct {
	db       *gorm.DB
	svc      *JobService
	payer    *PaymentService
	verifier *fakeVerifier
	events   *recordingEvents
	jobs     repository.JobRepository
	payments repository.PaymentRepository
	posts    repository.PostRepository
	poster   *models.User
}

func newJobFixture(t *testing.T, flags string) *jobFixture {
	t.Helper()
	db := setupTestDB(t)
	f := &jobFixture{
		db:       db,
		verifier: &fakeVerifier{},
		events:   &recordingEvents{},
		jobs:     repository.NewJobRepository(db),
		payments: repository.NewPaymentRepository(db),
		posts:    repository.NewPostRepository(db),
	}
	profiles := repository.NewProfileRepository(db)

	payer, err := NewPaymentService(f.payments, f.jobs, f.verifier, PaymentSettings{
		FeeETH:        "0.001",
		Recipient:     testRecipient,
		ChainID:       1,
		Confirmations: 1,
		ExplorerTxURL: "https://etherscan.io/tx/",
	}, nil, f.events)
	require.NoError(t, err)
	f.payer = payer

	f.svc = NewJobService(
		f.jobs,
		repository.NewApplicationRepository(db),
		repository.NewSavedJobRepository(db),
		f.payments,
		profiles,
		payer,
		featureflags.NewManager(flags),
		f.events,
	)

	f.poster = f.createUser(t, "poster")
	wallet := testWallet
	require.NoError(t, profiles.SetWallet(context.Background(), f.poster.ID, &wallet, models.WalletTypeMetaMask))
	return f
}

func (f *jobFixture) createUser(t *testing.T, name string) *models.User {
	t.Helper()
	email := name + "@example.com"
	u := &models.User{Email: &email, Password: "hash", Profile: &models.Profile{Name: name}}
	require.NoError(t, repository.NewUserRepository(f.db).Create(context.Background(), u))
	return u
}

func (f *jobFixture) input(hash string) CreateJobInput {
	lo, hi := 100.0, 200.0
	return CreateJobInput{
		UserID:          f.poster.ID,
		Title:           " Solidity Engineer ",
		Description:     "Audit and ship contracts.",
		BudgetMin:       &lo,
		BudgetMax:       &hi,
		Location:        "Remote",
		JobType:         models.JobTypeContract,
		RequiredSkills:  []string{" Solidity ", "solidity", "Go", ""},
		Tags:            []string{"DeFi", "defi", "EVM"},
		TransactionHash: hash,
	}
}

func confirmedResult() *chain.Result {
	block := uint64(19_000_000)
	return &chain.Result{
		Status:        chain.StatusConfirmed,
		From:          testWallet,
		To:            testRecipient,
		Value:         new(big.Int).Set(testFee),
		BlockNumber:   &block,
		Confirmations: 3,
	}
}

func TestCreateJob_Validation(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()

	in := f.input(testHash)
	in.Title = "   "
	_, err := f.svc.CreateJob(ctx, in)
	assertValidationError(t, err, "title is required")

	in = f.input(testHash)
	in.JobType = "gig"
	_, err = f.svc.CreateJob(ctx, in)
	assertValidationError(t, err, "job_type must be one of")

	in = f.input(testHash)
	low, high := 500.0, 10.0
	in.BudgetMin, in.BudgetMax = &low, &high
	_, err = f.svc.CreateJob(ctx, in)
	assertValidationError(t, err, "budget_min must not exceed budget_max")

	in = f.input("0x1234")
	_, err = f.svc.CreateJob(ctx, in)
	assertValidationError(t, err, "transaction_hash")

	assert.Empty(t, f.verifier.calls)
}

func TestCreateJob_MissingHashRequiresPayment(t *testing.T) {
	f := newJobFixture(t, "")

	_, err := f.svc.CreateJob(context.Background(), f.input(""))
	assertAppError(t, err, models.CodePaymentRequired)
}

func TestCreateJob_ConfirmedPublishesJobAndPost(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(confirmedResult(), nil)

	res, err := f.svc.CreateJob(ctx, f.input("0x"+strings.ToUpper(testHash[2:])))
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusActive, res.Status)
	assert.True(t, res.Job.PaymentConfirmed)
	assert.Equal(t, "Solidity Engineer", res.Job.Title)
	assert.Equal(t, models.StringList{"Solidity", "Go"}, res.Job.RequiredSkills)
	assert.Equal(t, models.StringList{"DeFi", "EVM"}, res.Job.Tags)
	require.NotNil(t, res.Job.TransactionHash)
	assert.Equal(t, testHash, *res.Job.TransactionHash)

	exp := f.verifier.lastExpectation()
	assert.Equal(t, testWallet, exp.From)
	assert.Equal(t, 0, exp.MinValue.Cmp(testFee))
	assert.Equal(t, uint64(1), exp.Confirmations)

	require.NotNil(t, res.Post)
	assert.Equal(t, "🚀 New job posted: Solidity Engineer in Remote", res.Post.Content)
	assert.Equal(t, models.PostTypeJob, res.Post.Type)
	require.NotNil(t, res.Post.JobID)
	assert.Equal(t, res.Job.ID, *res.Post.JobID)

	payment, err := f.payments.GetByHash(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)
	assert.Equal(t, "0.001", payment.Amount)
	assert.Equal(t, "https://etherscan.io/tx/"+testHash, payment.ExplorerURL)
	require.NotNil(t, payment.JobID)
	assert.Equal(t, res.Job.ID, *payment.JobID)

	active, err := f.svc.ListJobs(ctx, repository.JobFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)

	feed, err := f.posts.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, res.Post.ID, feed[0].ID)

	assert.ElementsMatch(t,
		[]string{notifications.EventJobPosted, notifications.EventPaymentConfirmed},
		f.events.types())

	// A transaction hash pays for one job only.
	_, err = f.svc.CreateJob(ctx, f.input(testHash))
	assertAppError(t, err, models.CodeConflict)
}

func TestCreateJob_FailedKeepsPaymentForReview(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{
		Status: chain.StatusFailed,
		Reason: "payment was not sent to the platform wallet",
		From:   testWallet,
		To:     "0x3333333333333333333333333333333333333333",
		Value:  new(big.Int).Set(testFee),
	}, nil)

	_, err := f.svc.CreateJob(ctx, f.input(testHash))
	assertAppError(t, err, models.CodePaymentRequired)
	assert.Contains(t, err.Error(), "platform wallet")

	payment, err := f.payments.GetByHash(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Nil(t, payment.JobID)

	mine, err := f.svc.ListMyJobs(ctx, f.poster.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Equal(t, []string{notifications.EventPaymentFailed}, f.events.types())
}

func TestCreateJob_UpstreamUnavailable(t *testing.T) {
	f := newJobFixture(t, "")
	f.verifier.set(nil, errors.Join(chain.ErrUnavailable, errors.New("connection refused")))

	_, err := f.svc.CreateJob(context.Background(), f.input(testHash))
	assertAppError(t, err, models.CodeUpstream)

	_, err = f.payments.GetByHash(context.Background(), testHash)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateJob_PendingThenReconciled(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending, Reason: "transaction not found yet"}, nil)

	res, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingPayment, res.Status)
	assert.Nil(t, res.Post)
	require.NotNil(t, res.Payment)
	assert.Equal(t, testWallet, res.Payment.FromAddress, "expected sender is kept for re-verification")

	other := f.createUser(t, "other")
	_, err = f.svc.GetJob(ctx, other.ID, res.Job.ID)
	assertAppError(t, err, models.CodeNotFound)
	own, err := f.svc.GetJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingPayment, own.Status)

	active, err := f.svc.ListJobs(ctx, repository.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	report, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, StillPending: 1}, report)

	f.verifier.set(confirmedResult(), nil)
	report, err = f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Confirmed: 1}, report)
	assert.Equal(t, testWallet, f.verifier.lastExpectation().From)

	job, err := f.svc.GetJob(ctx, other.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
	assert.True(t, job.PaymentConfirmed)

	feed, err := f.posts.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.NotNil(t, feed[0].JobID)
	assert.Equal(t, res.Job.ID, *feed[0].JobID)
	assert.Contains(t, f.events.types(), notifications.EventJobPosted)

	report, err = f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}

func TestReconcilePending_FailureClosesJob(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending}, nil)

	res, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)

	f.verifier.set(&chain.Result{Status: chain.StatusFailed, Reason: "transaction reverted"}, nil)
	report, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	job, err := f.svc.GetJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, job.Status)

	payment, err := f.payments.GetByHash(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "transaction reverted", payment.FailureReason)
}

func TestReconcilePending_StopsWhenNodeUnavailable(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending}, nil)

	_, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)
	_, err = f.svc.CreateJob(ctx, f.input("0x"+strings.Repeat("cd", 32)))
	require.NoError(t, err)

	f.verifier.set(nil, chain.ErrUnavailable)
	report, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Errors: 1}, report)
}

func TestReconcilePending_UnknownHashesDoNotStarveTheSweep(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending, Reason: chain.ReasonNotFound}, nil)

	for i := 0; i < reconcileBatch+1; i++ {
		_, err := f.svc.CreateJob(ctx, f.input(fmt.Sprintf("0x%064x", i+1)))
		require.NoError(t, err)
	}
	res, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPendingPayment, res.Status)

	f.verifier.setFor(testHash, confirmedResult())

	first, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: reconcileBatch, StillPending: reconcileBatch}, first)

	second, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Confirmed)

	job, err := f.svc.GetJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, job.Status)
}

func TestReconcilePending_FailsExpiredUnknownHashes(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending, Reason: chain.ReasonNotFound}, nil)

	stale, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)
	fresh, err := f.svc.CreateJob(ctx, f.input("0x"+strings.Repeat("cd", 32)))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Payment{}).
		Where("transaction_hash = ?", testHash).
		UpdateColumn("created_at", time.Now().Add(-25*time.Hour)).Error)

	report, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 2, Failed: 1, StillPending: 1}, report)

	payment, err := f.payments.GetByHash(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "transaction not found", payment.FailureReason)

	job, err := f.svc.GetJob(ctx, f.poster.ID, stale.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, job.Status)

	job, err = f.svc.GetJob(ctx, f.poster.ID, fresh.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingPayment, job.Status)

	payment, err = f.payments.GetByHash(ctx, "0x"+strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.NotNil(t, payment.LastCheckedAt)
	assert.Contains(t, f.events.types(), notifications.EventPaymentFailed)
}

func TestReconcilePending_ClosedJobStaysClosed(t *testing.T) {
	f := newJobFixture(t, "")
	ctx := context.Background()
	f.verifier.set(&chain.Result{Status: chain.StatusPending, Reason: "transaction not yet mined"}, nil)

	res, err := f.svc.CreateJob(ctx, f.input(testHash))
	require.NoError(t, err)
	_, err = f.svc.CloseJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)

	f.verifier.set(confirmedResult(), nil)
	report, err := f.payer.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1}, report)

	job, err := f.svc.GetJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, job.Status)

	feed, err := f.posts.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	payment, err := f.payments.GetByHash(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)
}

func TestCreateJob_FreePostsFlag(t *testing.T) {
	f := newJobFixture(t, "free_job_posts=on")

	res, err := f.svc.CreateJob(context.Background(), f.input(""))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusActive, res.Status)
	assert.Nil(t, res.Payment)
	require.NotNil(t, res.Post)
	assert.Empty(t, f.verifier.calls)
}

func TestApplyToJob(t *testing.T) {
	f := newJobFixture(t, "free_job_posts=on")
	ctx := context.Background()

	res, err := f.svc.CreateJob(ctx, f.input(""))
	require.NoError(t, err)
	applicant := f.createUser(t, "applicant")

	_, err = f.svc.Apply(ctx, f.poster.ID, res.Job.ID, "hire me")
	assertValidationError(t, err, "your own job")

	app, err := f.svc.Apply(ctx, applicant.ID, res.Job.ID, "  I have shipped three audits.  ")
	require.NoError(t, err)
	assert.Equal(t, "I have shipped three audits.", app.CoverLetter)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)

	_, err = f.svc.Apply(ctx, applicant.ID, res.Job.ID, "again")
	assertAppError(t, err, models.CodeConflict)

	_, err = f.svc.Apply(ctx, applicant.ID, 9999, "")
	assertAppError(t, err, models.CodeNotFound)

	_, err = f.svc.ListApplications(ctx, applicant.ID, res.Job.ID)
	assertAppError(t, err, models.CodeForbidden)

	apps, err := f.svc.ListApplications(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, applicant.ID, apps[0].UserID)

	mine, err := f.svc.ListMyApplications(ctx, applicant.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	var received []recordedEvent
	for _, e := range f.events.events {
		if e.eventType == notifications.EventApplicationReceived {
			received = append(received, e)
		}
	}
	require.Len(t, received, 1)
	assert.Equal(t, f.poster.ID, received[0].userID)

	_, err = f.svc.CloseJob(ctx, applicant.ID, res.Job.ID)
	assertAppError(t, err, models.CodeForbidden)
	closed, err := f.svc.CloseJob(ctx, f.poster.ID, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusClosed, closed.Status)

	late := f.createUser(t, "late")
	_, err = f.svc.Apply(ctx, late.ID, res.Job.ID, "")
	assertValidationError(t, err, "not accepting applications")
}

func TestSavedJobs(t *testing.T) {
	f := newJobFixture(t, "free_job_posts=on")
	ctx := context.Background()

	res, err := f.svc.CreateJob(ctx, f.input(""))
	require.NoError(t, err)
	reader := f.createUser(t, "reader")

	require.NoError(t, f.svc.SaveJob(ctx, reader.ID, res.Job.ID))
	require.NoError(t, f.svc.SaveJob(ctx, reader.ID, res.Job.ID))
	saved, err := f.svc.ListSavedJobs(ctx, reader.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, f.svc.UnsaveJob(ctx, reader.ID, res.Job.ID))
	saved, err = f.svc.ListSavedJobs(ctx, reader.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)

	err = f.svc.SaveJob(ctx, reader.ID, 4242)
	assertAppError(t, err, models.CodeNotFound)
}

func TestListJobs_RejectsUnknownType(t *testing.T) {
	f := newJobFixture(t, "")

	_, err := f.svc.ListJobs(context.Background(), repository.JobFilter{JobType: "gig"})
	assertValidationError(t, err, "job_type")
}
