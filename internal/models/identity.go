package models

// Identity is the durable identity of a wallet that has signed in at least once.
// The wallet address is the unique key; there is no email or password.
type Identity struct {
	// ID is the unique identifier for the identity (UUID format).
	ID string

	// WalletAddress is the base-58 Ed25519 public key.
	WalletAddress string

	// CreatedAt is the Unix timestamp of the first successful sign-in.
	CreatedAt int64
}
