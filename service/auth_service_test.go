package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-labs/tollgate/adapters/balance"
	"github.com/tollgate-labs/tollgate/adapters/store"
	"github.com/tollgate-labs/tollgate/adapters/tokenizer"
	"github.com/tollgate-labs/tollgate/core"
	"github.com/tollgate-labs/tollgate/internal/eth"
)

type fixture struct {
	svc      *AuthService
	nonces   *store.MemoryStore
	tokens   *tokenizer.JWTTokenizer
	balances *balance.StaticFetcher

	key     *ecdsa.PrivateKey
	address string

	clock time.Time
	mu    sync.Mutex
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		clock:   time.Now(),
	}

	f.nonces = store.NewMemoryStore(0)
	f.tokens = tokenizer.NewJWTTokenizer([]byte("test-secret"))
	f.tokens.Now = f.now
	f.balances = balance.NewStaticFetcher(map[string]*big.Int{
		f.address: big.NewInt(5000),
	})

	f.svc = NewAuthService(f.nonces, f.tokens, f.balances, nil, cfg)
	f.svc.now = f.now

	return f
}

func gateConfig() Config {
	return Config{
		Domains:          []string{"app.example"},
		ChainID:          "vara",
		Threshold:        decimal.NewFromInt(3000),
		Decimals:         0,
		NonceTTL:         5 * time.Minute,
		SessionTTL:       20 * time.Minute,
		ClockSkew:        30 * time.Second,
		RefreshFloor:     2 * time.Minute,
		RecheckOnRefresh: true,
		FetchTimeout:     time.Second,
	}
}

func (f *fixture) challengeMessage(t *testing.T, nonce string) string {
	t.Helper()
	return fmt.Sprintf("Nonce: %s\nDomain: app.example\nChainId: vara\nIssuedAt: %s\nExpiresIn: 10m",
		nonce, f.now().UTC().Format(time.RFC3339))
}

func (f *fixture) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(eth.PersonalHash([]byte(message)), f.key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

// signedChallenge issues a nonce and returns a valid signed message for it
func (f *fixture) signedChallenge(t *testing.T) (message, signature string) {
	t.Helper()
	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message = f.challengeMessage(t, nonce.Nonce)
	return message, f.sign(t, message)
}

func TestRequestNonce(t *testing.T) {
	f := newFixture(t, gateConfig())

	result, err := f.svc.RequestNonce()
	require.NoError(t, err)
	assert.NotEmpty(t, result.Nonce)
	assert.Equal(t, int64(300), result.ExpiresIn)

	other, err := f.svc.RequestNonce()
	require.NoError(t, err)
	assert.NotEqual(t, result.Nonce, other.Nonce)
}

func TestVerifyGrants(t *testing.T) {
	f := newFixture(t, gateConfig())
	message, signature := f.signedChallenge(t)

	result, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "5000", result.Balance.String())
	assert.Equal(t, "3000", result.Threshold.String())
	assert.Equal(t, int32(0), result.Decimals)

	sess, err := f.svc.CheckEntitlement(result.Token)
	require.NoError(t, err)
	assert.Equal(t, f.address, sess.Address)
	assert.True(t, sess.HasAccess)
}

func TestVerifyExactThresholdGrants(t *testing.T) {
	f := newFixture(t, gateConfig())
	f.balances.SetBalance(f.address, big.NewInt(3000))
	message, signature := f.signedChallenge(t)

	result, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestVerifyDeniesBelowThreshold(t *testing.T) {
	f := newFixture(t, gateConfig())
	f.balances.SetBalance(f.address, big.NewInt(1000))
	message, signature := f.signedChallenge(t)

	result, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	require.NotNil(t, result, "denial must carry the gating figures")
	assert.Empty(t, result.Token, "no token on denial")
	assert.Equal(t, "1000", result.Balance.String())
	assert.Equal(t, "3000", result.Threshold.String())
	assert.Equal(t, int32(0), result.Decimals)
}

func TestVerifyMalformedRequest(t *testing.T) {
	f := newFixture(t, gateConfig())
	message, signature := f.signedChallenge(t)

	tests := []struct {
		name                        string
		address, message, signature string
	}{
		{"empty address", "", message, signature},
		{"bad address", "not-an-address", message, signature},
		{"empty message", f.address, "", signature},
		{"empty signature", f.address, message, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Verify(context.Background(), tt.address, tt.message, tt.signature)
			assert.ErrorIs(t, err, core.ErrMalformedRequest)
		})
	}
}

func TestVerifyMissingChallengeField(t *testing.T) {
	f := newFixture(t, gateConfig())

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message := fmt.Sprintf("Nonce: %s\nChainId: vara\nIssuedAt: %s\nExpiresIn: 10m",
		nonce.Nonce, f.now().UTC().Format(time.RFC3339)) // no Domain

	_, err = f.svc.Verify(context.Background(), f.address, message, f.sign(t, message))
	assert.ErrorIs(t, err, core.ErrMalformedChallenge)
}

func TestVerifyUnknownNonce(t *testing.T) {
	f := newFixture(t, gateConfig())

	message := f.challengeMessage(t, "never-issued")
	_, err := f.svc.Verify(context.Background(), f.address, message, f.sign(t, message))
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestVerifyReplayRejected(t *testing.T) {
	f := newFixture(t, gateConfig())
	message, signature := f.signedChallenge(t)

	_, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), f.address, message, signature)
	assert.ErrorIs(t, err, core.ErrInvalidNonce, "replayed nonce must be rejected")
}

func TestVerifyConcurrentReplayAtMostOneSucceeds(t *testing.T) {
	f := newFixture(t, gateConfig())
	message, signature := f.signedChallenge(t)

	var successes atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Verify(context.Background(), f.address, message, signature); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
}

func TestVerifyBurnsNonceOnDoomedRequest(t *testing.T) {
	f := newFixture(t, gateConfig())

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)

	// wrong chain id, but the nonce is still consumed: one attempt per nonce
	bad := fmt.Sprintf("Nonce: %s\nDomain: app.example\nChainId: wrong\nIssuedAt: %s\nExpiresIn: 10m",
		nonce.Nonce, f.now().UTC().Format(time.RFC3339))
	_, err = f.svc.Verify(context.Background(), f.address, bad, f.sign(t, bad))
	require.ErrorIs(t, err, core.ErrInvalidChainID)

	good := f.challengeMessage(t, nonce.Nonce)
	_, err = f.svc.Verify(context.Background(), f.address, good, f.sign(t, good))
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestVerifyWrongDomain(t *testing.T) {
	f := newFixture(t, gateConfig())

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message := fmt.Sprintf("Nonce: %s\nDomain: evil.example\nChainId: vara\nIssuedAt: %s\nExpiresIn: 10m",
		nonce.Nonce, f.now().UTC().Format(time.RFC3339))

	_, err = f.svc.Verify(context.Background(), f.address, message, f.sign(t, message))
	assert.ErrorIs(t, err, core.ErrInvalidDomain)
}

func TestVerifyFutureIssuedAtRejected(t *testing.T) {
	f := newFixture(t, gateConfig())

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message := fmt.Sprintf("Nonce: %s\nDomain: app.example\nChainId: vara\nIssuedAt: %s\nExpiresIn: 10m",
		nonce.Nonce, f.now().Add(10*time.Minute).UTC().Format(time.RFC3339))

	// valid signature and sufficient balance, still rejected as forward-dated
	_, err = f.svc.Verify(context.Background(), f.address, message, f.sign(t, message))
	assert.ErrorIs(t, err, core.ErrStaleMessage)
}

func TestVerifyExpiredWindowRejected(t *testing.T) {
	f := newFixture(t, gateConfig())
	message, signature := f.signedChallenge(t)

	f.advance(11 * time.Minute) // past IssuedAt + 10m + skew, nonce TTL aside

	_, err := f.svc.Verify(context.Background(), f.address, message, signature)
	assert.ErrorIs(t, err, core.ErrStaleMessage)
}

func TestVerifyBadSignature(t *testing.T) {
	f := newFixture(t, gateConfig())

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message := f.challengeMessage(t, nonce.Nonce)
	// signature over different bytes
	signature := f.sign(t, message+" tampered")

	_, err = f.svc.Verify(context.Background(), f.address, message, signature)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestVerifySignatureFromOtherKey(t *testing.T) {
	f := newFixture(t, gateConfig())
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	nonce, err := f.svc.RequestNonce()
	require.NoError(t, err)
	message := f.challengeMessage(t, nonce.Nonce)

	sig, err := crypto.Sign(eth.PersonalHash([]byte(message)), other)
	require.NoError(t, err)
	sig[64] += 27

	_, err = f.svc.Verify(context.Background(), f.address, message, hexutil.Encode(sig))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestVerifyFailsClosedOnFetchError(t *testing.T) {
	f := newFixture(t, gateConfig())
	f.balances.FailWith(errors.New("rpc unreachable"))
	message, signature := f.signedChallenge(t)

	result, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Equal(t, "0", result.Balance.String(), "fetch failure degrades to zero balance")
}

func (f *fixture) grantToken(t *testing.T) string {
	t.Helper()
	message, signature := f.signedChallenge(t)
	result, err := f.svc.Verify(context.Background(), f.address, message, signature)
	require.NoError(t, err)
	return result.Token
}

func TestRefreshAboveFloorReturnsSameToken(t *testing.T) {
	f := newFixture(t, gateConfig())
	token := f.grantToken(t)

	result, err := f.svc.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, result.Refreshed)
	assert.Equal(t, token, result.Token, "token returned unchanged")
	assert.Greater(t, result.RemainingSec, int64(120))
}

func TestRefreshNearExpiryRenews(t *testing.T) {
	f := newFixture(t, gateConfig())
	token := f.grantToken(t)

	f.advance(19 * time.Minute) // 1 minute left, below the 2-minute floor

	result, err := f.svc.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.NotEqual(t, token, result.Token)
	require.NotNil(t, result.Figures, "recheck ran")
	assert.Equal(t, "5000", result.Figures.Balance.String())

	sess, err := f.svc.CheckEntitlement(result.Token)
	require.NoError(t, err)
	assert.True(t, sess.HasAccess)
	assert.Equal(t, int64(20*60), sess.RemainingSeconds(f.now()))
}

func TestRefreshRecheckDenies(t *testing.T) {
	f := newFixture(t, gateConfig())
	token := f.grantToken(t)

	f.advance(19 * time.Minute)
	f.balances.SetBalance(f.address, big.NewInt(1000))

	result, err := f.svc.Refresh(context.Background(), token)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	require.NotNil(t, result)
	require.NotNil(t, result.Figures)
	assert.Empty(t, result.Token)
	assert.Equal(t, "1000", result.Figures.Balance.String())

	// the denied refresh does not revoke the still-valid token
	sess, err := f.svc.CheckEntitlement(token)
	require.NoError(t, err)
	assert.True(t, sess.HasAccess)

	// but the token is not extended either: past expiry it is gone
	f.advance(2 * time.Minute)
	_, err = f.svc.CheckEntitlement(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRefreshWithoutRecheckRenews(t *testing.T) {
	cfg := gateConfig()
	cfg.RecheckOnRefresh = false
	f := newFixture(t, cfg)
	token := f.grantToken(t)

	f.advance(19 * time.Minute)
	f.balances.SetBalance(f.address, big.NewInt(0)) // ignored without recheck

	result, err := f.svc.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.Nil(t, result.Figures)
}

func TestRefreshInvalidToken(t *testing.T) {
	f := newFixture(t, gateConfig())

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := f.svc.Refresh(context.Background(), token)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newFixture(t, gateConfig())
	token := f.grantToken(t)

	f.advance(21 * time.Minute)

	_, err := f.svc.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestCheckEntitlementInvalid(t *testing.T) {
	f := newFixture(t, gateConfig())

	_, err := f.svc.CheckEntitlement("bogus")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
