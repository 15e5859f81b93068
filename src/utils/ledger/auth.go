package ledger

import (
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
)

const tokenIssuer = "rental-syncer"

// Issues short lived HS256 bearer tokens for the gateway. Tokens are reused until close to expiry.
type tokenSource struct {
	secret []byte
	ttl    time.Duration

	mtx       sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(secret string, ttl time.Duration) *tokenSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &tokenSource{secret: []byte(secret), ttl: ttl}
}

func (self *tokenSource) Token() (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	now := time.Now()
	if self.token != "" && now.Add(self.ttl/4).Before(self.expiresAt) {
		return self.token, nil
	}

	expiresAt := now.Add(self.ttl)
	t := jwt.New()
	for k, v := range map[string]interface{}{
		jwt.IssuerKey:     tokenIssuer,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: expiresAt,
	} {
		err := t.Set(k, v)
		if err != nil {
			return "", err
		}
	}

	signed, err := jwt.Sign(t, jwa.HS256, self.secret)
	if err != nil {
		return "", err
	}

	self.token = string(signed)
	self.expiresAt = expiresAt
	return self.token, nil
}
