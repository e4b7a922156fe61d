package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/subodh038/paysplit/internal/apperr"
)

const challengeHeader = "Sign this message to authenticate with PaySplit."

var (
	ErrMalformedChallenge = fmt.Errorf("%w: malformed challenge message", apperr.ErrAuthentication)
	ErrChallengeExpired   = fmt.Errorf("%w: challenge expired", apperr.ErrAuthentication)
	ErrChallengeReplayed  = fmt.Errorf("%w: challenge already used", apperr.ErrAuthentication)
	ErrChallengeMismatch  = fmt.Errorf("%w: challenge was issued for a different wallet", apperr.ErrAuthentication)
)

// Challenge is the parsed content of a sign-in message.
type Challenge struct {
	Address  string
	IssuedAt time.Time
	Nonce    string
	Message  string
}

// BuildChallenge renders the message a wallet signs to sign in. The format is
// fixed; uniqueness comes from the millisecond timestamp and the nonce.
func BuildChallenge(address string, issuedAt time.Time, nonce string) string {
	return fmt.Sprintf("%s\n\nWallet: %s\nTimestamp: %d\nNonce: %s",
		challengeHeader, address, issuedAt.UnixMilli(), nonce)
}

// ParseChallenge recovers a Challenge from a message produced by
// BuildChallenge. Any drift in the text is rejected.
func ParseChallenge(message string) (Challenge, error) {
	lines := strings.Split(message, "\n")
	if len(lines) != 5 || lines[0] != challengeHeader || lines[1] != "" {
		return Challenge{}, ErrMalformedChallenge
	}

	address, ok1 := strings.CutPrefix(lines[2], "Wallet: ")
	ts, ok2 := strings.CutPrefix(lines[3], "Timestamp: ")
	nonce, ok3 := strings.CutPrefix(lines[4], "Nonce: ")
	if !ok1 || !ok2 || !ok3 || address == "" || nonce == "" {
		return Challenge{}, ErrMalformedChallenge
	}
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || millis <= 0 {
		return Challenge{}, ErrMalformedChallenge
	}

	c := Challenge{
		Address:  address,
		IssuedAt: time.UnixMilli(millis),
		Nonce:    nonce,
		Message:  message,
	}
	if BuildChallenge(c.Address, c.IssuedAt, c.Nonce) != message {
		return Challenge{}, ErrMalformedChallenge
	}
	return c, nil
}

// CheckFresh rejects challenges older than ttl or issued more than skew in
// the future.
func (c Challenge) CheckFresh(now time.Time, ttl, skew time.Duration) error {
	if c.IssuedAt.After(now.Add(skew)) {
		return errors.Join(ErrChallengeExpired, fmt.Errorf("issued %s in the future", c.IssuedAt.Sub(now)))
	}
	if now.Sub(c.IssuedAt) > ttl {
		return ErrChallengeExpired
	}
	return nil
}
