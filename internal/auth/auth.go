package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "votaciones"
	secretEnvVariable = "VOTACIONES_AUTH_SECRET"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims used across the service. NumMesa is zero for
// the administrator account.
type Claims struct {
	Nombre  string `json:"nombre,omitempty"`
	Rol     string `json:"rol"`
	NumMesa int    `json:"nummesa,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the given account using HS256.
func GenerateToken(usuario, nombre, rol string, numMesa int, ttl time.Duration) (string, error) {
	usuario = strings.TrimSpace(usuario)
	if usuario == "" {
		return "", errors.New("usuario is required")
	}
	rol = strings.TrimSpace(strings.ToUpper(rol))
	if rol == "" {
		return "", errors.New("rol is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		Nombre:  strings.TrimSpace(nombre),
		Rol:     rol,
		NumMesa: numMesa,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   usuario,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims.
func ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	claims.Rol = strings.ToUpper(strings.TrimSpace(claims.Rol))
	return claims, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if strings.TrimSpace(claims.Rol) == "" {
		return errors.New("rol missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}

type ctxKey string

const (
	usuarioKey ctxKey = "auth_usuario"
	rolKey     ctxKey = "auth_rol"
	mesaKey    ctxKey = "auth_nummesa"
)

// ContextWithUser stores the authenticated account identity in the context.
func ContextWithUser(ctx context.Context, usuario, rol string, numMesa int) context.Context {
	ctx = context.WithValue(ctx, usuarioKey, strings.TrimSpace(usuario))
	ctx = context.WithValue(ctx, rolKey, strings.ToUpper(strings.TrimSpace(rol)))
	return context.WithValue(ctx, mesaKey, numMesa)
}

// UserIDFromContext extracts the authenticated username from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usuarioKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RolFromContext returns the normalized role stored in the context.
func RolFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(rolKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MesaFromContext returns the table number bound to the authenticated juror.
func MesaFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(mesaKey).(int)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// HasRole checks whether the context carries the specified role.
func HasRole(ctx context.Context, rol string) bool {
	rol = strings.ToUpper(strings.TrimSpace(rol))
	if rol == "" {
		return false
	}
	got, ok := RolFromContext(ctx)
	return ok && got == rol
}
