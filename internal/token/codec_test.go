package token

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-access-secret-0123"
	testRefreshSecret = "refresh-secret-refresh-secret-01"
	testIssuer        = "careerhub-identity"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := NewCodec(testAccessSecret, testRefreshSecret, testIssuer, WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func TestNewCodec_SecretRules(t *testing.T) {
	_, err := NewCodec("", testRefreshSecret, testIssuer)
	assert.Error(t, err)

	_, err = NewCodec(testAccessSecret, "", testIssuer)
	assert.Error(t, err)

	_, err = NewCodec(testAccessSecret, testAccessSecret, testIssuer)
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	c, _ := newTestCodec(t)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			in := Claims{IdentityID: "id-1", Role: "recruiter", Handle: "a@b.com"}

			signed, minted, err := c.Mint(kind, in, 15*time.Minute)
			require.NoError(t, err)
			assert.NotEmpty(t, minted.ID)

			got, err := c.Verify(signed, kind)
			require.NoError(t, err)

			assert.Equal(t, in.IdentityID, got.IdentityID)
			assert.Equal(t, in.Role, got.Role)
			assert.Equal(t, in.Handle, got.Handle)
			assert.Equal(t, kind, got.Type)
			assert.Equal(t, minted.ID, got.ID)
			assert.Equal(t, "id-1", got.Subject)
			assert.Equal(t, testIssuer, got.Issuer)
			assert.Equal(t, minted.ExpiresAt.Unix(), got.ExpiresAt.Unix())
			assert.Equal(t, minted.IssuedAt.Unix(), got.IssuedAt.Unix())
		})
	}
}

func TestCodec_MintKeepsProvidedID(t *testing.T) {
	c, _ := newTestCodec(t)

	signed, minted, err := c.Mint(KindRefresh, Claims{IdentityID: "id-1", RegisteredClaims: jwt.RegisteredClaims{ID: "jti-fixed"}}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "jti-fixed", minted.ID)

	got, err := c.Verify(signed, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "jti-fixed", got.ID)
}

func TestCodec_MintFreshIDEachCall(t *testing.T) {
	c, _ := newTestCodec(t)

	_, a, err := c.Mint(KindRefresh, Claims{IdentityID: "id-1"}, time.Hour)
	require.NoError(t, err)
	_, b, err := c.Mint(KindRefresh, Claims{IdentityID: "id-1"}, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestCodec_MintRejectsBadInput(t *testing.T) {
	c, _ := newTestCodec(t)

	_, _, err := c.Mint(KindAccess, Claims{IdentityID: "id-1"}, 0)
	assert.Error(t, err)

	_, _, err = c.Mint(KindAccess, Claims{IdentityID: "id-1"}, 500*time.Millisecond)
	assert.ErrorContains(t, err, "at least 1s")

	_, _, err = c.Mint(Kind("session"), Claims{IdentityID: "id-1"}, time.Minute)
	assert.Error(t, err)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	c, clock := newTestCodec(t)

	signed, _, err := c.Mint(KindAccess, Claims{IdentityID: "id-1", Role: "student"}, time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	_, err = c.Verify(signed, KindAccess)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_SubSecondClockStillValidUntilTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 200*int(time.Millisecond), time.UTC)}
	c, err := NewCodec(testAccessSecret, testRefreshSecret, testIssuer, WithClock(clock.Now))
	require.NoError(t, err)

	signed, claims, err := c.Mint(KindAccess, Claims{IdentityID: "id-1"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC), claims.ExpiresAt.Time.UTC())

	_, err = c.Verify(signed, KindAccess)
	require.NoError(t, err)

	clock.Advance(999 * time.Millisecond)
	_, err = c.Verify(signed, KindAccess)
	assert.NoError(t, err)
}

func TestCeilSecond(t *testing.T) {
	whole := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	assert.Equal(t, whole, ceilSecond(whole))
	assert.Equal(t, whole.Add(time.Second), ceilSecond(whole.Add(time.Nanosecond)))
}

func TestCodec_ValidJustBeforeExpiry(t *testing.T) {
	c, clock := newTestCodec(t)

	signed, _, err := c.Mint(KindAccess, Claims{IdentityID: "id-1"}, 10*time.Second)
	require.NoError(t, err)

	clock.Advance(9 * time.Second)

	_, err = c.Verify(signed, KindAccess)
	assert.NoError(t, err)
}

func TestCodec_WrongKindSecretIsInvalidSignature(t *testing.T) {
	c, _ := newTestCodec(t)

	access, _, err := c.Mint(KindAccess, Claims{IdentityID: "id-1"}, time.Minute)
	require.NoError(t, err)

	_, err = c.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	refresh, _, err := c.Mint(KindRefresh, Claims{IdentityID: "id-1"}, time.Minute)
	require.NoError(t, err)

	_, err = c.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_TamperedPayloadIsInvalidSignature(t *testing.T) {
	c, _ := newTestCodec(t)

	signed, _, err := c.Mint(KindAccess, Claims{IdentityID: "id-1", Role: "student"}, time.Minute)
	require.NoError(t, err)

	// Re-sign an admin payload with a guessed key and splice the original
	// signature onto it.
	forged, _, err := mustCodec(t, "guess-guess-guess-guess-guess-00", "other-other-other-other-other-000").
		Mint(KindAccess, Claims{IdentityID: "id-1", Role: "admin"}, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(forged, ".")
	orig := strings.Split(signed, ".")
	spliced := parts[0] + "." + parts[1] + "." + orig[2]

	_, err = c.Verify(spliced, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_ExpiredAndForgedIsInvalidSignature(t *testing.T) {
	c, clock := newTestCodec(t)
	other := mustCodec(t, "guess-guess-guess-guess-guess-00", "other-other-other-other-other-000")

	forged, _, err := other.Mint(KindAccess, Claims{IdentityID: "id-1"}, time.Second)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = c.Verify(forged, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestCodec_AlgNoneRejected(t *testing.T) {
	c, _ := newTestCodec(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		IdentityID: "id-1",
		Type:       KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(unsigned, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_Malformed(t *testing.T) {
	c, _ := newTestCodec(t)

	for _, s := range []string{"", "abc", "a.b.c", "eyJhbGciOiJIUzI1NiJ9..."} {
		_, err := c.Verify(s, KindAccess)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", s)
	}
}

func TestCodec_TypeClaimMustMatch(t *testing.T) {
	// Same secret for both kinds on the signing side so only the typ claim
	// tells them apart.
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	signer := &Codec{
		secrets: map[Kind][]byte{KindAccess: []byte(testRefreshSecret), KindRefresh: []byte(testRefreshSecret)},
		issuer:  testIssuer,
		now:     clock.Now,
	}
	c, err := NewCodec(testAccessSecret, testRefreshSecret, testIssuer, WithClock(clock.Now))
	require.NoError(t, err)

	accessTyped, _, err := signer.Mint(KindAccess, Claims{IdentityID: "id-1"}, time.Minute)
	require.NoError(t, err)

	_, err = c.Verify(accessTyped, KindRefresh)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodec_WrongIssuerRejected(t *testing.T) {
	c, clock := newTestCodec(t)
	other, err := NewCodec(testAccessSecret, testRefreshSecret, "someone-else", WithClock(clock.Now))
	require.NoError(t, err)

	signed, _, err := other.Mint(KindAccess, Claims{IdentityID: "id-1"}, time.Minute)
	require.NoError(t, err)

	_, err = c.Verify(signed, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func mustCodec(t *testing.T, access, refresh string) *Codec {
	t.Helper()
	c, err := NewCodec(access, refresh, testIssuer, WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return c
}
