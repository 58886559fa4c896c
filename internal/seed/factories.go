package seed

import (
	"fmt"
	"math"
	"strings"
	"time"

	"chainhire/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

var (
	skillPool = []string{
		"Solidity", "Rust", "Go", "TypeScript", "React", "Node.js", "Hardhat",
		"Foundry", "Anchor", "ethers.js", "web3.js", "Smart Contract Auditing",
		"Tokenomics", "PostgreSQL", "Kubernetes", "Zero-Knowledge Proofs",
		"Product Design", "Community Management", "Technical Writing",
	}

	tagPool = []string{
		"defi", "nft", "dao", "layer2", "solana", "ethereum", "security",
		"frontend", "backend", "infra", "zk", "gaming", "remote",
	}

	postTypes = []string{
		models.PostTypeUpdate, models.PostTypeUpdate, models.PostTypeAnnouncement, models.PostTypeMilestone,
	}

	jobTypes = []string{
		models.JobTypeFullTime, models.JobTypePartTime, models.JobTypeContract, models.JobTypeFreelance,
	}

	postTemplates = []string{
		"Just shipped %s. Feedback welcome!",
		"Week %d of building in public: %s",
		"Hot take: %s",
		"We are hiring! %s",
		"Milestone unlocked 🎉 %s",
	}
)

// Factory builds demo records with gofakeit. It is deterministic for a given seed.
type Factory struct {
	faker        *gofakeit.Faker
	passwordHash string
}

// NewFactory creates a factory; a zero seed uses the current time.
func NewFactory(seed int64, password string) (*Factory, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// demo accounts only
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	return &Factory{faker: gofakeit.New(seed), passwordHash: string(hash)}, nil
}

// User builds the i-th demo account with its profile. Every walletEvery-th user
// gets a linked MetaMask wallet.
func (f *Factory) User(i, walletEvery int) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	email := fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i)
	handle := strings.ToLower(first + "-" + last)

	profile := &models.Profile{
		Name:        first + " " + last,
		Bio:         f.faker.Sentence(12),
		LinkedInURL: "https://www.linkedin.com/in/" + handle,
	}
	profile.SetSkills(f.pick(skillPool, f.faker.Number(1, 4)))

	if walletEvery > 0 && i%walletEvery == 0 {
		addr := f.WalletAddress()
		profile.WalletAddress = &addr
		profile.WalletType = models.WalletTypeMetaMask
	}

	return &models.User{
		Email:    &email,
		Password: f.passwordHash,
		Profile:  profile,
	}
}

// Job builds an active, paid listing for employerID.
func (f *Factory) Job(employerID uint, txHash string) *models.Job {
	budgetMin := math.Round(f.faker.Float64Range(40, 120)) * 1000
	budgetMax := budgetMin + float64(f.faker.Number(10, 60))*1000

	location := "Remote"
	if f.faker.Bool() {
		location = f.faker.City()
	}

	return &models.Job{
		UserID:           employerID,
		Title:            f.faker.JobLevel() + " " + f.faker.JobTitle(),
		Description:      f.faker.Paragraph(2, 4, 12, "\n\n"),
		BudgetMin:        &budgetMin,
		BudgetMax:        &budgetMax,
		Currency:         "USD",
		Location:         location,
		JobType:          f.faker.RandomString(jobTypes),
		RequiredSkills:   models.StringList(f.pick(skillPool, f.faker.Number(2, 4))),
		Tags:             models.StringList(f.pick(tagPool, f.faker.Number(1, 3))),
		PaymentConfirmed: true,
		TransactionHash:  &txHash,
		Blockchain:       models.BlockchainEthereum,
		Status:           models.JobStatusActive,
	}
}

// Payment builds the confirmed fee payment for a seeded job.
func (f *Factory) Payment(userID uint, txHash, amount, amountWei string, chainID int64) *models.Payment {
	block := uint64(f.faker.Number(18_000_000, 20_000_000))
	return &models.Payment{
		UserID:          userID,
		Amount:          amount,
		AmountWei:       amountWei,
		Currency:        models.CurrencyETH,
		TransactionHash: txHash,
		FromAddress:     f.WalletAddress(),
		Blockchain:      models.BlockchainEthereum,
		ChainID:         chainID,
		Status:          models.PaymentStatusConfirmed,
		BlockNumber:     &block,
	}
}

// Post builds a feed post. week numbers the "building in public" template.
func (f *Factory) Post(userID uint, week int) *models.Post {
	tpl := f.faker.RandomString(postTemplates)
	var content string
	if strings.Contains(tpl, "%d") {
		content = fmt.Sprintf(tpl, week, f.faker.HackerPhrase())
	} else {
		content = fmt.Sprintf(tpl, f.faker.HackerPhrase())
	}

	return &models.Post{
		UserID:  userID,
		Content: content,
		Type:    f.faker.RandomString(postTypes),
		Tags:    models.StringList(f.pick(tagPool, f.faker.Number(0, 2))),
	}
}

// Announcement is the feed post that accompanies a seeded job.
func (f *Factory) Announcement(job *models.Job) *models.Post {
	return &models.Post{
		UserID:  job.UserID,
		Content: "🚀 New job posted: " + job.Title + " in " + job.Location,
		Type:    models.PostTypeJob,
		Tags:    append(models.StringList{}, job.Tags...),
	}
}

// Comment returns a short comment body.
func (f *Factory) Comment() string {
	return f.faker.Sentence(f.faker.Number(4, 14))
}

// CoverLetter returns a job application cover letter.
func (f *Factory) CoverLetter() string {
	return f.faker.Paragraph(1, 3, 10, " ")
}

// TxHash returns a random 32-byte transaction hash in 0x-hex form.
func (f *Factory) TxHash() string {
	return fmt.Sprintf("0x%016x%016x%016x%016x",
		f.faker.Uint64(), f.faker.Uint64(), f.faker.Uint64(), f.faker.Uint64())
}

// WalletAddress returns a random lowercase EVM address.
func (f *Factory) WalletAddress() string {
	return fmt.Sprintf("0x%016x%016x%08x", f.faker.Uint64(), f.faker.Uint64(), f.faker.Uint32())
}

// Indexes returns k distinct indexes in [0, n) in random order.
func (f *Factory) Indexes(n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := f.faker.Number(0, i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// Between returns a number in [0, limit].
func (f *Factory) Between(limit int) int {
	if limit <= 0 {
		return 0
	}
	return f.faker.Number(0, limit)
}

func (f *Factory) pick(pool []string, k int) []string {
	out := make([]string, 0, k)
	for _, i := range f.Indexes(len(pool), k) {
		out = append(out, pool[i])
	}
	return out
}
