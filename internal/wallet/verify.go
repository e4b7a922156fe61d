package wallet

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ed25519"
)

// Verify reports whether signature is a valid Ed25519 detached signature of
// message under publicKey. Wrong-length keys or signatures are invalid; it
// never panics.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// VerifyBase58 verifies a base-58 signature against a base-58 wallet address.
// The message is checked byte for byte as given, with no normalization.
// Malformed base-58 fails closed.
func VerifyBase58(message, signature, address string) bool {
	pub, err := ParseAddress(address)
	if err != nil {
		return false
	}
	sig, err := base58.Decode(signature)
	if err != nil {
		return false
	}
	return Verify([]byte(message), sig, pub)
}

// Sign produces the base-58 detached signature a wallet would return for
// message. Used by the CLI, which holds its own keypair.
func Sign(key ed25519.PrivateKey, message string) string {
	return base58.Encode(ed25519.Sign(key, []byte(message)))
}
