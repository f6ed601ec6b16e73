package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated caller as described by the identity provider's
// token claims.
type Principal struct {
	Subject    string         `json:"sub"`
	SessionID  string         `json:"sid,omitempty"`
	Email      string         `json:"email,omitempty"`
	Name       string         `json:"name,omitempty"`
	GivenName  string         `json:"given_name,omitempty"`
	FamilyName string         `json:"family_name,omitempty"`
	Claims     map[string]any `json:"-"`
}

// FullName prefers the explicit name claim and falls back to given + family name.
func (p Principal) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

// Authenticator signs and validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateJWT mints a token for the given principal.
func (a *Authenticator) GenerateJWT(p Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": p.Subject,
		"iat": now.Unix(),
		"exp": now.Add(a.ttl).Unix(),
	}
	for k, v := range map[string]string{
		"sid":         p.SessionID,
		"email":       p.Email,
		"name":        p.Name,
		"given_name":  p.GivenName,
		"family_name": p.FamilyName,
	} {
		if v != "" {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) ValidateJWT(tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	p := &Principal{Subject: sub, Claims: map[string]any(claims)}
	p.SessionID, _ = claims["sid"].(string)
	p.Email, _ = claims["email"].(string)
	p.Name, _ = claims["name"].(string)
	p.GivenName, _ = claims["given_name"].(string)
	p.FamilyName, _ = claims["family_name"].(string)
	return p, nil
}
