package token

import (
	"log/slog"
	"time"

	"github.com/zonegate/zonegate/internal/model"
)

// Reason classifies why authentication failed. The external response is
// identical for all of them; the distinction exists for the audit log.
type Reason string

const (
	ReasonMalformed         Reason = "malformed"
	ReasonNotFound          Reason = "not_found"
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonExpiredOrDisabled Reason = "expired_or_disabled"
)

// Store is the slice of persistence the authenticator needs.
type Store interface {
	GetTokenByPrefix(prefix string) (*model.AuthToken, error)
	GetRealm(id string) (*model.Realm, error)
	TouchToken(id string, when time.Time) error
}

// Result is the outcome of authenticating a presented token.
type Result struct {
	OK          bool
	Reason      Reason
	Token       *model.AuthToken
	Realm       *model.Realm
	Fingerprint string
}

// Authenticator verifies presented bearer tokens against the store.
type Authenticator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(store Store, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Authenticate resolves a presented token to its realm. A non-nil error
// means the store itself failed; every normal denial is expressed
// through Result.Reason so callers can answer without leaking which
// check rejected the token.
func (a *Authenticator) Authenticate(presented string) (*Result, error) {
	res := &Result{Fingerprint: Fingerprint(presented)}

	prefix, secret, err := Split(presented)
	if err != nil {
		res.Reason = ReasonMalformed
		return res, nil
	}

	tok, err := a.store.GetTokenByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		res.Reason = ReasonNotFound
		return res, nil
	}

	if !VerifySecret(secret, tok.SecretHash) {
		res.Reason = ReasonInvalidCredential
		return res, nil
	}

	if !tok.Active || tok.Expired(a.now()) {
		res.Reason = ReasonExpiredOrDisabled
		return res, nil
	}

	realm, err := a.store.GetRealm(tok.RealmID)
	if err != nil {
		return nil, err
	}
	if realm == nil {
		// Token outlived its realm; treat like a disabled credential.
		res.Reason = ReasonExpiredOrDisabled
		return res, nil
	}

	res.OK = true
	res.Token = tok
	res.Realm = realm

	// Best-effort; never on the decision path.
	go func(id string, when time.Time) {
		if err := a.store.TouchToken(id, when); err != nil {
			a.logger.Debug("failed to update token last_used_at", "token_id", id, "error", err)
		}
	}(tok.ID, a.now())

	return res, nil
}
