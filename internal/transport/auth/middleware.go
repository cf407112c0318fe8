package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"liaison/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey string

const PartyIDKey ctxKey = "partyID"

// ginPartyKey mirrors PartyIDKey on the gin context.
const ginPartyKey = "party_id"

var (
	ErrNoParty       = errors.New("party id not found in context")
	ErrReservedParty = errors.New("subject is reserved for internal jobs")
)

// Verifier validates HMAC-signed bearer tokens whose subject is a party id.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) (*Verifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

func (v *Verifier) Parse(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	if models.IsReservedPartyID(claims.Subject) {
		return "", ErrReservedParty
	}
	return claims.Subject, nil
}

// Issue signs a token for partyID, used by the command line and tests.
func (v *Verifier) Issue(partyID string, ttl time.Duration) (string, error) {
	if models.IsReservedPartyID(partyID) {
		return "", ErrReservedParty
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   partyID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware authenticates the Authorization bearer token, falling back to
// the token query parameter for websocket clients.
func Middleware(v *Verifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenStr := ""
		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = strings.TrimSpace(parts[1])
			}
		}
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token not provided"})
			return
		}

		partyID, err := v.Parse(tokenStr)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ginPartyKey, partyID)
		c.Request = c.Request.WithContext(WithPartyID(c.Request.Context(), partyID))
		c.Next()
	}
}

func WithPartyID(ctx context.Context, partyID string) context.Context {
	return context.WithValue(ctx, PartyIDKey, partyID)
}

func GetPartyID(ctx context.Context) (string, error) {
	v, ok := ctx.Value(PartyIDKey).(string)
	if !ok || v == "" {
		return "", ErrNoParty
	}
	return v, nil
}

// PartyID reads the authenticated party from a gin context.
func PartyID(c *gin.Context) (string, error) {
	if v := c.GetString(ginPartyKey); v != "" {
		return v, nil
	}
	return GetPartyID(c.Request.Context())
}
