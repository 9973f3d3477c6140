package invite

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid invitation token")
	ErrExpired      = errors.New("invitation expired")
)

// DefaultTTL is how long a partner invitation stays valid.
const DefaultTTL = 7 * 24 * time.Hour

const issuer = "tandem"

type Claims struct {
	InviterID int64  `json:"inviter_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies partner invitations.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an invitation from inviterID to email.
func (i *Issuer) Issue(inviterID int64, email string) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		InviterID: inviterID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(inviterID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign invitation: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies an invitation token and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.InviterID == 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
