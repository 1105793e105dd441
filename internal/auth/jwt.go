// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"strings"
	"time"

	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for tokens that fail signature, kid or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs tokens with the active key and verifies tokens signed with any
// configured key, selected by the "kid" header. A manager built from a single secret
// signs without a kid.
type JWTManager struct {
	keys      map[string][]byte
	activeKid string
	duration  time.Duration
}

// Claims is the token payload.
type Claims struct {
	UserID     string `json:"user_id"` // hex ObjectID
	Email      string `json:"email"`
	Profession string `json:"profession,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager using a single HMAC secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{keys: map[string][]byte{"": []byte(secretKey)}, duration: duration}
}

// NewJWTManagerFromKeys returns a manager that signs with keys[activeKid] and accepts
// tokens signed with any key in keys. If activeKid is unknown the lexically first kid is
// used.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{keys: make(map[string][]byte, len(keys)), duration: duration}
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
		if m.activeKid == "" || kid < m.activeKid {
			m.activeKid = kid
		}
	}
	if _, ok := keys[activeKid]; ok {
		m.activeKid = activeKid
	}
	return m
}

// ParseKeys parses "kid:secret,kid2:secret2" as used by the JWT_KEYS setting.
func ParseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid key entry %q, want kid:secret", pair)
		}
		keys[parts[0]] = parts[1]
	}
	if len(keys) == 0 {
		return nil, errors.New("no keys configured")
	}
	return keys, nil
}

// GenerateToken issues a signed token for a user. The email is normalized.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, email string) (string, time.Time, error) {
	return m.GenerateTokenWithProfession(userID, email, "")
}

// GenerateTokenWithProfession is GenerateToken with the user's profession in the claims.
func (m *JWTManager) GenerateTokenWithProfession(userID bson.ObjectID, email, profession string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &Claims{
		UserID:     userID.Hex(),
		Email:      normalize.Email(email),
		Profession: profession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}
	signed, err := token.SignedString(m.keys[m.activeKid])
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC; rejects alg=none and key confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		key, ok := m.keys[kid]
		if !ok {
			return nil, errors.Errorf("unknown key id %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := bson.ObjectIDFromHex(claims.UserID); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
