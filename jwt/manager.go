package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for both token kinds.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

const (
	// TypeAccess marks short-lived access tokens.
	TypeAccess = "access"
	// TypeRefresh marks long-lived refresh tokens.
	TypeRefresh = "refresh"

	minHMACSecretBytes = 32
)

var (
	// ErrWrongTokenType is returned when an access token is presented as a refresh token or the reverse.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrMissingSubject is returned when a token carries no user id.
	ErrMissingSubject = errors.New("missing uid claim")
)

// Config controls signing, lifetimes, and strict verification.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	// KeyID is written to the kid header of every issued token.
	KeyID string
	// VerifyKeys maps kid to verification key. Dropping a kid invalidates
	// every outstanding token signed under it.
	VerifyKeys map[string][]byte
	Now        func() time.Time
}

// Manager issues and verifies access and refresh tokens.
//
// Manager is stateless after construction and safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens. They hold the user id only.
type RefreshClaims struct {
	UID  string `json:"uid"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type typedClaims interface {
	jwt.Claims
	tokenType() string
	subject() string
	issuedAt() *jwt.NumericDate
}

func (c *AccessClaims) tokenType() string          { return c.Type }
func (c *AccessClaims) subject() string            { return c.UID }
func (c *AccessClaims) issuedAt() *jwt.NumericDate { return c.IssuedAt }

func (c *RefreshClaims) tokenType() string          { return c.Type }
func (c *RefreshClaims) subject() string            { return c.UID }
func (c *RefreshClaims) issuedAt() *jwt.NumericDate { return c.IssuedAt }

// NewManager validates cfg and returns a Manager.
//
// NewManager returns an error for missing keys, short HMAC secrets,
// non-positive lifetimes, or an unknown signing method.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires signing secret")
		}
		if len(cfg.PrivateKey) < minHMACSecretBytes {
			return nil, fmt.Errorf("hs256 signing secret must be at least %d bytes", minHMACSecretBytes)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < minHMACSecretBytes {
				return nil, fmt.Errorf("hs256 verify secret for kid %q is too short", kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("ed25519 requires private key")
		}
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// CreateAccess signs an access token carrying uid and email.
func (j *Manager) CreateAccess(uid, email string) (string, error) {
	if uid == "" {
		return "", ErrMissingSubject
	}
	now := j.config.Now()
	claims := AccessClaims{
		UID:              uid,
		Email:            email,
		Type:             TypeAccess,
		RegisteredClaims: j.registered(now, j.config.AccessTTL, ""),
	}
	return j.sign(&claims)
}

// CreateRefresh signs a refresh token carrying uid only. Every refresh token
// gets a fresh jti so rotated tokens never collide.
func (j *Manager) CreateRefresh(uid string) (string, error) {
	if uid == "" {
		return "", ErrMissingSubject
	}
	now := j.config.Now()
	claims := RefreshClaims{
		UID:              uid,
		Type:             TypeRefresh,
		RegisteredClaims: j.registered(now, j.config.RefreshTTL, uuid.NewString()),
	}
	return j.sign(&claims)
}

// IssuePair signs a fresh access and refresh token for one user.
func (j *Manager) IssuePair(uid, email string) (access string, refresh string, err error) {
	access, err = j.CreateAccess(uid, email)
	if err != nil {
		return "", "", err
	}
	refresh, err = j.CreateRefresh(uid)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ParseAccess strictly verifies an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, TypeAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh strictly verifies a refresh token and returns its claims.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, TypeRefresh); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyAccess returns the claims of a valid access token, or nil for any
// signature, expiry, or shape failure. It never returns an error.
func (j *Manager) VerifyAccess(tokenStr string) *AccessClaims {
	if j == nil || tokenStr == "" {
		return nil
	}
	claims, err := j.ParseAccess(tokenStr)
	if err != nil {
		return nil
	}
	return claims
}

// VerifyRefresh returns the claims of a valid refresh token, or nil.
func (j *Manager) VerifyRefresh(tokenStr string) *RefreshClaims {
	if j == nil || tokenStr == "" {
		return nil
	}
	claims, err := j.ParseRefresh(tokenStr)
	if err != nil {
		return nil
	}
	return claims
}

func (j *Manager) registered(now time.Time, ttl time.Duration, id string) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		ID:        id,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    j.config.Issuer,
	}
	if j.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	return rc
}

func (j *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

func (j *Manager) parse(tokenStr string, claims typedClaims, wantType string) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	if claims.tokenType() != wantType {
		return ErrWrongTokenType
	}
	if claims.subject() == "" {
		return ErrMissingSubject
	}
	if iat := claims.issuedAt(); iat != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if iat.Time.After(maxAllowed) {
			return errors.New("token iat too far in the future")
		}
	}

	return nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
