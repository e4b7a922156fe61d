// Package wallet implements the cryptographic half of wallet sign-in: wallet
// address parsing, challenge messages, and Ed25519 detached-signature checks.
// Nothing here touches a private key on the server side, performs I/O or
// keeps state, except for NonceCache.
package wallet

import (
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ed25519"

	"github.com/subodh038/paysplit/internal/apperr"
)

var (
	ErrInvalidAddress   = fmt.Errorf("%w: wallet address must be a base-58 encoded 32-byte public key", apperr.ErrValidation)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", apperr.ErrAuthentication)
)

// ParseAddress decodes a base-58 wallet address into an Ed25519 public key.
func ParseAddress(address string) (ed25519.PublicKey, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	}
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

// ValidateAddress reports whether address is a well-formed wallet address.
func ValidateAddress(address string) error {
	_, err := ParseAddress(address)
	return err
}

// Address encodes a public key in its textual wallet-address form.
func Address(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}
