package credential

import (
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

var ErrEmptyToken = errors.New("credential: empty token")

// Claims is the subset of token claims used for client-side staleness checks.
// Cxp is the channel-scoped expiry some issuers add for channel tokens; it can
// be stricter than the overall expiry.
type Claims struct {
	jwt.RegisteredClaims
	ChannelExpiresAt *jwt.NumericDate `json:"cxp,omitempty"`
}

// Expiries holds the decoded expiry instants in seconds since epoch.
// The zero value is the maximally stale sentinel.
type Expiries struct {
	Exp    int64
	Cxp    int64
	HasCxp bool
}

var parser = jwt.NewParser()

// Decode reads the token's claims without verifying its signature.
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrEmptyToken
	}
	claims := Claims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// DecodeExpiries never fails: malformed tokens decode to Expiries{}.
func DecodeExpiries(token string) Expiries {
	claims, err := Decode(token)
	if err != nil {
		return Expiries{}
	}
	out := Expiries{}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.ChannelExpiresAt != nil {
		out.Cxp = claims.ChannelExpiresAt.Unix()
		out.HasCxp = true
	}
	return out
}

type Validator struct {
	Clock clock.Clock
}

func (v Validator) now() time.Time {
	if v.Clock == nil {
		return time.Now()
	}
	return v.Clock.Now()
}

// IsInvalid reports whether token is unusable: empty, undecodable, or past
// either of its expiry instants.
func (v Validator) IsInvalid(token string) bool {
	if strings.TrimSpace(token) == "" {
		return true
	}
	nowMs := v.now().UnixMilli()
	exp := DecodeExpiries(token)
	if nowMs >= exp.Exp*1000 {
		return true
	}
	if exp.HasCxp && nowMs >= exp.Cxp*1000 {
		return true
	}
	return false
}

func IsInvalid(token string) bool {
	return Validator{}.IsInvalid(token)
}
