// Package evm provides Ethereum signature helpers for identity binding.
package evm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an r || s || v signature in bytes
const SignatureLength = crypto.SignatureLength

// recoveryIDOffset is added to v by wallets that follow the legacy
// eth_sign convention (27/28 instead of 0/1)
const recoveryIDOffset = 27

// Errors returned for malformed signatures.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidRecoveryID = errors.New("invalid signature recovery id")
)

// DecodeSignature parses a hex signature (with or without 0x) into the
// 65-byte form expected by crypto.SigToPub, normalising v to 0 or 1.
func DecodeSignature(signature string) ([]byte, error) {
	s := strings.TrimSpace(signature)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	sig, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}

	v := sig[crypto.RecoveryIDOffset]
	if v >= recoveryIDOffset {
		v -= recoveryIDOffset
	}
	if v > 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, sig[crypto.RecoveryIDOffset])
	}
	sig[crypto.RecoveryIDOffset] = v

	return sig, nil
}

// TextHash returns the EIP-191 digest that personal_sign signs:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func TextHash(message string) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
}

// RecoverPersonalSign recovers the address that signed message with
// personal_sign (EIP-191 "\x19Ethereum Signed Message:\n" prefix).
func RecoverPersonalSign(message, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSign reports whether signature over message recovers to
// claimedAddress. Addresses are compared case-insensitively; EIP-55
// checksums are not enforced.
func VerifyPersonalSign(message, signature, claimedAddress string) (bool, string, error) {
	recovered, err := RecoverPersonalSign(message, signature)
	if err != nil {
		return false, "", err
	}

	recoveredHex := recovered.Hex()
	return EqualAddress(recoveredHex, claimedAddress), recoveredHex, nil
}

// EqualAddress compares two hex addresses ignoring case and surrounding space
func EqualAddress(a, b string) bool {
	return strings.ToLower(strings.TrimSpace(a)) == strings.ToLower(strings.TrimSpace(b))
}
