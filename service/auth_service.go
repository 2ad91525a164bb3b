package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/tollgate-labs/tollgate/core"
	"github.com/tollgate-labs/tollgate/internal/eth"
	"github.com/tollgate-labs/tollgate/ports"
)

// Config carries the gating policy of the orchestrator
type Config struct {
	Domains          []string        // challenge domain allow-list, empty disables the check
	ChainID          string          // expected chain id, empty disables the check
	Threshold        decimal.Decimal // minimum balance in human-readable units
	Decimals         int32           // token decimals
	NonceTTL         time.Duration   // challenge nonce lifetime
	SessionTTL       time.Duration   // session token lifetime
	ClockSkew        time.Duration   // freshness tolerance on either side of the window
	RefreshFloor     time.Duration   // remaining lifetime above which refresh is a no-op
	RecheckOnRefresh bool            // re-verify the balance before renewing a session
	FetchTimeout     time.Duration   // per-request budget for the balance lookup
}

// AuthService composes the nonce registry, signature verification,
// entitlement evaluation and session tokens into the challenge-response
// protocol
type AuthService struct {
	nonces   ports.NonceStore
	tokens   ports.SessionTokenizer
	balances ports.BalanceFetcher
	eventPub ports.EventPublisher
	cfg      Config

	now func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	tokens ports.SessionTokenizer,
	balances ports.BalanceFetcher,
	eventPub ports.EventPublisher,
	cfg Config,
) *AuthService {
	return &AuthService{
		nonces:   nonces,
		tokens:   tokens,
		balances: balances,
		eventPub: eventPub,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NonceResult is the response to a nonce request
type NonceResult struct {
	Nonce     string
	ExpiresIn int64 // seconds
}

// GateFigures carries the human-readable numbers behind a gating decision
type GateFigures struct {
	Balance   decimal.Decimal
	Threshold decimal.Decimal
	Decimals  int32
}

// VerifyResult is the outcome of a verification attempt. On
// ErrInsufficientBalance the figures are still populated so the caller can
// report them; Token is empty.
type VerifyResult struct {
	Token string
	GateFigures
}

// RefreshResult is the outcome of a refresh attempt. Figures is non-nil only
// when a balance recheck ran.
type RefreshResult struct {
	Token        string
	RemainingSec int64
	Refreshed    bool
	Figures      *GateFigures
}

// RequestNonce issues a fresh single-use nonce with the configured TTL
func (s *AuthService) RequestNonce() (*NonceResult, error) {
	nonce, err := s.nonces.Issue(s.cfg.NonceTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	noncesIssued.Inc()

	return &NonceResult{
		Nonce:     nonce,
		ExpiresIn: int64(s.cfg.NonceTTL / time.Second),
	}, nil
}

// Verify runs the full challenge verification: message shape, nonce
// consumption, domain and chain binding, freshness, signature recovery and
// balance gating. On success it issues a session token.
func (s *AuthService) Verify(ctx context.Context, address, message, signature string) (*VerifyResult, error) {
	outcome := "granted"
	defer func() { verifications.WithLabelValues(outcome).Inc() }()

	if address == "" || message == "" || signature == "" || !common.IsHexAddress(address) {
		outcome = "malformed"
		return nil, core.ErrMalformedRequest
	}

	ch, err := core.ParseChallenge(message)
	if err != nil {
		outcome = "malformed_challenge"
		return nil, err
	}

	// The nonce is consumed before any further validation, so a doomed
	// request still burns it: one challenge attempt per nonce. Replayed
	// nonces are rejected here even when the signature would verify.
	if !s.nonces.Consume(ch.Nonce) {
		outcome = "invalid_nonce"
		return nil, core.ErrInvalidNonce
	}

	if len(s.cfg.Domains) > 0 && !contains(s.cfg.Domains, ch.Domain) {
		outcome = "invalid_domain"
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidDomain, ch.Domain)
	}

	if s.cfg.ChainID != "" && ch.ChainID != s.cfg.ChainID {
		outcome = "invalid_chain"
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidChainID, ch.ChainID)
	}

	if err := ch.FreshAt(s.now(), s.cfg.ClockSkew); err != nil {
		outcome = "stale"
		return nil, err
	}

	sig, err := eth.DecodeSignature(signature)
	if err != nil {
		outcome = "invalid_signature"
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	ok, err := eth.VerifyPersonalSign(common.HexToAddress(address), message, sig)
	if err != nil || !ok {
		outcome = "invalid_signature"
		return nil, core.ErrInvalidSignature
	}

	ent := s.evaluate(ctx, address)
	figs := figuresFrom(ent)

	if !ent.HasAccess {
		outcome = "denied"
		s.publish(func() error {
			return s.eventPub.PublishAccessDenied(ctx, address, figs.Balance.String())
		})
		return &VerifyResult{GateFigures: figs}, core.ErrInsufficientBalance
	}

	token, err := s.tokens.Issue(address, true, s.cfg.SessionTTL)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.publish(func() error {
		return s.eventPub.PublishAccessGranted(ctx, address, figs.Balance.String())
	})

	return &VerifyResult{Token: token, GateFigures: figs}, nil
}

// Refresh renews a session token nearing expiry. Tokens with more remaining
// lifetime than the configured floor are returned unchanged. With recheck
// enabled the subject's balance is re-verified first; a failed recheck
// denies renewal but does not revoke the presented token, which stays valid
// until its natural expiry.
func (s *AuthService) Refresh(ctx context.Context, tokenStr string) (*RefreshResult, error) {
	outcome := "refreshed"
	defer func() { refreshes.WithLabelValues(outcome).Inc() }()

	sess, err := s.tokens.Validate(tokenStr)
	if err != nil {
		outcome = "invalid_token"
		return nil, core.ErrInvalidToken
	}

	remaining := sess.RemainingSeconds(s.now())
	if time.Duration(remaining)*time.Second > s.cfg.RefreshFloor {
		outcome = "not_yet"
		return &RefreshResult{Token: tokenStr, RemainingSec: remaining}, nil
	}

	hasAccess := sess.HasAccess
	var figs *GateFigures
	if s.cfg.RecheckOnRefresh {
		ent := s.evaluate(ctx, sess.Address)
		f := figuresFrom(ent)
		figs = &f

		if !ent.HasAccess {
			outcome = "denied"
			s.publish(func() error {
				return s.eventPub.PublishAccessDenied(ctx, sess.Address, f.Balance.String())
			})
			return &RefreshResult{RemainingSec: remaining, Figures: figs}, core.ErrInsufficientBalance
		}
		hasAccess = true
	}

	token, err := s.tokens.Issue(sess.Address, hasAccess, s.cfg.SessionTTL)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.publish(func() error {
		return s.eventPub.PublishSessionRefreshed(ctx, sess.Address)
	})

	return &RefreshResult{Token: token, RemainingSec: remaining, Refreshed: true, Figures: figs}, nil
}

// CheckEntitlement validates a session token and returns the session inside
// it. Stateless; the chain is never queried.
func (s *AuthService) CheckEntitlement(tokenStr string) (*core.Session, error) {
	sess, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, core.ErrInvalidToken
	}
	return sess, nil
}

// evaluate fetches the balance under the configured timeout and gates it.
// A failed or timed-out lookup is downgraded to a zero balance so that an
// unreadable chain denies access instead of crashing or granting.
func (s *AuthService) evaluate(ctx context.Context, address string) core.Entitlement {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	raw, err := s.balances.FetchBalance(fctx, address)
	if err != nil {
		balanceFetchFailures.Inc()
		slog.Warn("balance fetch failed, treating as zero", "address", address, "error", err)
		raw = new(big.Int)
	}

	return core.Evaluate(raw, s.cfg.Threshold, s.cfg.Decimals)
}

// publish runs a best-effort event emission; failures are logged and never
// fail the request
func (s *AuthService) publish(fn func() error) {
	if s.eventPub == nil {
		return
	}
	if err := fn(); err != nil {
		slog.Warn("failed to publish auth event", "error", err)
	}
}

func figuresFrom(ent core.Entitlement) GateFigures {
	return GateFigures{
		Balance:   ent.Balance(),
		Threshold: ent.Threshold(),
		Decimals:  ent.Decimals,
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
