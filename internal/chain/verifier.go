package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chainhire/internal/observability"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel/attribute"
)

// Reader is the read-only JSON-RPC surface used to verify payments.
// *ethclient.Client satisfies it.
type Reader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ErrUnavailable wraps RPC failures other than "not found".
var ErrUnavailable = errors.New("chain node unavailable")

// ReasonNotFound is the pending reason for a hash the node does not know.
const ReasonNotFound = "transaction not found yet"

// Transfer outcomes.
const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Expectation describes the payment a transaction must carry.
type Expectation struct {
	To       common.Address
	MinValue *big.Int
	// From, when set, must equal the transaction sender.
	From          string
	Confirmations uint64
}

// Result is the verdict for one transaction.
type Result struct {
	Status        string
	Reason        string
	From          string
	To            string
	Value         *big.Int
	BlockNumber   *uint64
	Confirmations uint64
}

// Confirmed reports whether the transfer satisfied every expectation.
func (r *Result) Confirmed() bool { return r.Status == StatusConfirmed }

// Verifier checks native-token transfers against an Expectation.
type Verifier struct {
	reader  Reader
	chainID *big.Int
}

// NewVerifier returns a Verifier reading from r for the given chain.
func NewVerifier(r Reader, chainID int64) *Verifier {
	return &Verifier{reader: r, chainID: big.NewInt(chainID)}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return c, nil
}

// VerifyTransfer inspects hash and classifies it as confirmed, pending or failed.
// A non-nil error means the node could not answer and nothing is known.
func (v *Verifier) VerifyTransfer(ctx context.Context, hash string, exp Expectation) (_ *Result, err error) {
	ctx, span := observability.StartChainSpan(ctx, "verify_transfer", attribute.String("tx.hash", hash))
	defer func() { observability.EndSpan(span, err) }()

	h := common.HexToHash(hash)

	start := time.Now()
	tx, isPending, err := v.reader.TransactionByHash(ctx, h)
	observeRPC("eth_getTransactionByHash", start)
	if errors.Is(err, ethereum.NotFound) {
		return &Result{Status: StatusPending, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res := &Result{Value: tx.Value()}
	if to := tx.To(); to != nil {
		res.To = strings.ToLower(to.Hex())
	}
	if from, err := types.Sender(types.LatestSignerForChainID(v.chainID), tx); err == nil {
		res.From = strings.ToLower(from.Hex())
	}

	if reason := v.checkTransaction(tx, res, exp); reason != "" {
		res.Status = StatusFailed
		res.Reason = reason
		return res, nil
	}

	if isPending {
		res.Status = StatusPending
		res.Reason = "transaction not yet mined"
		return res, nil
	}

	start = time.Now()
	receipt, err := v.reader.TransactionReceipt(ctx, h)
	observeRPC("eth_getTransactionReceipt", start)
	if errors.Is(err, ethereum.NotFound) {
		res.Status = StatusPending
		res.Reason = "receipt not available yet"
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	block := receipt.BlockNumber.Uint64()
	res.BlockNumber = &block
	if receipt.Status != types.ReceiptStatusSuccessful {
		res.Status = StatusFailed
		res.Reason = "transaction reverted"
		return res, nil
	}

	start = time.Now()
	head, err := v.reader.BlockNumber(ctx)
	observeRPC("eth_blockNumber", start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if head >= block {
		res.Confirmations = head - block + 1
	}

	required := exp.Confirmations
	if required == 0 {
		required = 1
	}
	if res.Confirmations < required {
		res.Status = StatusPending
		res.Reason = fmt.Sprintf("%d of %d confirmations", res.Confirmations, required)
		return res, nil
	}

	res.Status = StatusConfirmed
	return res, nil
}

func (v *Verifier) checkTransaction(tx *types.Transaction, res *Result, exp Expectation) string {
	if id := tx.ChainId(); id != nil && id.Sign() != 0 && id.Cmp(v.chainID) != 0 {
		return fmt.Sprintf("transaction is for chain %s, expected %s", id, v.chainID)
	}
	if tx.To() == nil || *tx.To() != exp.To {
		return "payment was not sent to the platform wallet"
	}
	if exp.MinValue != nil && tx.Value().Cmp(exp.MinValue) < 0 {
		return fmt.Sprintf("payment of %s ETH is below the %s ETH fee", FormatEther(tx.Value()), FormatEther(exp.MinValue))
	}
	if exp.From != "" && !strings.EqualFold(res.From, exp.From) {
		return "payment was not sent from the linked wallet"
	}
	return ""
}

func observeRPC(method string, start time.Time) {
	observability.ChainRPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
