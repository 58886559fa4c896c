package chain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Wallet providers, matching models.WalletType*.
const (
	WalletMetaMask = "metamask"
	WalletPhantom  = "phantom"
)

var (
	ErrUnsupportedWallet = errors.New("unsupported wallet type")
	ErrInvalidAddress    = errors.New("invalid wallet address")
)

var txHashRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsEVMAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsEVMAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// IsSolanaAddress reports whether s is a base58 encoded 32-byte public key.
func IsSolanaAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return txHashRegex.MatchString(s)
}

// NormalizeAddress validates address for walletType and returns its canonical form:
// lower-case hex for EVM wallets, unchanged base58 for Solana.
func NormalizeAddress(walletType, address string) (string, error) {
	address = strings.TrimSpace(address)
	switch walletType {
	case WalletMetaMask:
		if !IsEVMAddress(address) {
			return "", ErrInvalidAddress
		}
		return strings.ToLower(address), nil
	case WalletPhantom:
		if !IsSolanaAddress(address) {
			return "", ErrInvalidAddress
		}
		return address, nil
	default:
		return "", ErrUnsupportedWallet
	}
}

// NormalizeTxHash lower-cases a transaction hash after validating its shape.
func NormalizeTxHash(hash string) (string, error) {
	hash = strings.TrimSpace(hash)
	if !IsTxHash(hash) {
		return "", errors.New("invalid transaction hash")
	}
	return strings.ToLower(hash), nil
}
