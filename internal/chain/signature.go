package chain

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// ErrSignatureMismatch means the signature is well formed but was not made by the address.
var ErrSignatureMismatch = errors.New("signature does not match address")

// VerifySignature checks a sign-in signature for the given wallet provider.
func VerifySignature(walletType, address, message, signature string) error {
	switch walletType {
	case WalletMetaMask:
		return VerifyPersonalSign(address, message, signature)
	case WalletPhantom:
		return VerifyEd25519(address, message, signature)
	default:
		return ErrUnsupportedWallet
	}
}

// VerifyPersonalSign checks an EIP-191 personal_sign signature (0x-prefixed, 65 bytes).
func VerifyPersonalSign(address, message, sigHex string) error {
	sig, err := hexutil.Decode(strings.TrimSpace(sigHex))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	// Wallets emit V as 27/28; recovery expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyEd25519 checks a Phantom signMessage signature. address is the base58 public key;
// the signature may be base58, hex or base64 encoded.
func VerifyEd25519(address, message, signature string) error {
	pub, err := base58.Decode(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	sig, err := decodeEd25519Signature(strings.TrimSpace(signature))
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return ErrSignatureMismatch
	}
	return nil
}

func decodeEd25519Signature(s string) ([]byte, error) {
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(b) == ed25519.SignatureSize {
		return b, nil
	}
	if b, err := base58.Decode(s); err == nil && len(b) == ed25519.SignatureSize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == ed25519.SignatureSize {
		return b, nil
	}
	return nil, fmt.Errorf("signature must be a %d-byte value in base58, hex or base64", ed25519.SignatureSize)
}
