package wallet

import (
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/subodh038/paysplit/internal/apperr"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestParseAddress(t *testing.T) {
	pub, _ := newKey(t)

	got, err := ParseAddress(Address(pub))
	require.NoError(t, err)
	require.Equal(t, pub, got)

	for name, addr := range map[string]string{
		"empty":      "",
		"not base58": "0OIl+/",
		"too short":  base58.Encode(pub[:31]),
		"too long":   base58.Encode(append(append([]byte{}, pub...), 0x01)),
		"has spaces": " " + Address(pub),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAddress(addr)
			require.ErrorIs(t, err, ErrInvalidAddress)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestVerify(t *testing.T) {
	pub, priv := newKey(t)
	msg := []byte(BuildChallenge(Address(pub), time.UnixMilli(1700000000000), "n-1"))
	sig := ed25519.Sign(priv, msg)

	require.True(t, Verify(msg, sig, pub))
	// Deterministic.
	require.True(t, Verify(msg, sig, pub))

	flip := func(b []byte, i int) []byte {
		c := append([]byte{}, b...)
		c[i/8] ^= 1 << (i % 8)
		return c
	}

	for _, i := range []int{0, 7, 100, len(msg)*8 - 1} {
		require.False(t, Verify(flip(msg, i), sig, pub), "message bit %d", i)
	}
	for _, i := range []int{0, 255, 256, 511} {
		require.False(t, Verify(msg, flip(sig, i), pub), "signature bit %d", i)
	}
	for _, i := range []int{0, 128, 255} {
		require.False(t, Verify(msg, sig, flip(pub, i)), "public key bit %d", i)
	}
}

func TestVerifyFailsClosedOnMalformedInput(t *testing.T) {
	pub, priv := newKey(t)
	msg := []byte("hello")
	sig := ed25519.Sign(priv, msg)

	require.False(t, Verify(msg, sig[:63], pub))
	require.False(t, Verify(msg, sig, pub[:31]))
	require.False(t, Verify(msg, nil, nil))

	require.False(t, VerifyBase58("hello", "not-base58!", Address(pub)))
	require.False(t, VerifyBase58("hello", base58.Encode(sig), "not-base58!"))
	require.False(t, VerifyBase58("hello", "", Address(pub)))
	require.True(t, VerifyBase58("hello", base58.Encode(sig), Address(pub)))
}

func TestVerifyBase58WrongKey(t *testing.T) {
	pub, _ := newKey(t)
	_, otherPriv := newKey(t)
	msg := BuildChallenge(Address(pub), time.Now(), "n-2")

	require.False(t, VerifyBase58(msg, Sign(otherPriv, msg), Address(pub)))
}

func TestBuildChallenge(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	msg := BuildChallenge("ADDR", at, "nonce-1")

	require.Equal(t,
		"Sign this message to authenticate with PaySplit.\n\nWallet: ADDR\nTimestamp: 1700000000123\nNonce: nonce-1",
		msg)
	require.Equal(t, msg, BuildChallenge("ADDR", at, "nonce-1"), "format must be deterministic")
	require.NotEqual(t, msg, BuildChallenge("ADDR", at, "nonce-2"))
	require.NotEqual(t, msg, BuildChallenge("ADDR", at.Add(time.Millisecond), "nonce-1"))
}

func TestParseChallenge(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	msg := BuildChallenge("ADDR", at, "nonce-1")

	c, err := ParseChallenge(msg)
	require.NoError(t, err)
	require.Equal(t, "ADDR", c.Address)
	require.Equal(t, "nonce-1", c.Nonce)
	require.True(t, c.IssuedAt.Equal(at))

	for name, bad := range map[string]string{
		"empty":            "",
		"trailing newline": msg + "\n",
		"crlf":             strings.ReplaceAll(msg, "\n", "\r\n"),
		"other header":     strings.Replace(msg, "PaySplit", "Other", 1),
		"bad timestamp":    strings.Replace(msg, "1700000000123", "soon", 1),
		"padded timestamp": strings.Replace(msg, "1700000000123", "01700000000123", 1),
		"missing nonce":    strings.Replace(msg, "nonce-1", "", 1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseChallenge(bad)
			require.ErrorIs(t, err, ErrMalformedChallenge)
		})
	}
}

func TestChallengeCheckFresh(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	c := Challenge{IssuedAt: now.Add(-time.Minute)}

	require.NoError(t, c.CheckFresh(now, 5*time.Minute, 30*time.Second))
	require.ErrorIs(t, c.CheckFresh(now, 30*time.Second, 30*time.Second), ErrChallengeExpired)

	future := Challenge{IssuedAt: now.Add(time.Minute)}
	require.ErrorIs(t, future.CheckFresh(now, 5*time.Minute, 30*time.Second), ErrChallengeExpired)
}

func TestNonceCache(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	c := NewNonceCache(time.Minute)
	c.now = func() time.Time { return now }

	require.True(t, c.Consume("alice", "a", now))
	require.False(t, c.Consume("alice", "a", now), "second use must be rejected")
	require.True(t, c.Consume("alice", "b", now))
	require.Equal(t, 2, c.Len())

	// Expired entries are pruned.
	now = now.Add(2 * time.Minute)
	require.True(t, c.Consume("alice", "c", now))
	require.Equal(t, 1, c.Len())
}

func TestNonceCacheScopedToAddress(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	c := NewNonceCache(time.Minute)
	c.now = func() time.Time { return now }

	require.True(t, c.Consume("alice", "shared", now))
	require.True(t, c.Consume("bob", "shared", now), "another wallet's nonce must not be consumed")
	require.False(t, c.Consume("bob", "shared", now))
}

func TestNonceCacheRelease(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	c := NewNonceCache(time.Minute)
	c.now = func() time.Time { return now }

	require.True(t, c.Consume("alice", "a", now))
	c.Release("alice", "a")
	require.Equal(t, 0, c.Len())
	require.True(t, c.Consume("alice", "a", now), "released nonce can be used again")

	// Releasing an unknown nonce is a no-op.
	c.Release("bob", "a")
	require.False(t, c.Consume("alice", "a", now))
}

func TestNonceCacheConcurrentConsume(t *testing.T) {
	c := NewNonceCache(time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Consume("alice", "n", now) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
