package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/session"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "sessionToken",
		Claims:        new(Claims),
	}
	contextIdentityKey = "identity"

	jwtAppName                string
	jwtExpirationDelta        time.Duration
	jwtRefreshExpirationDelta time.Duration
)

// ConfigureAuth sets the JWT signing parameters and returns the auth
// middleware. Must be called once before tokens are issued.
func ConfigureAuth(appName string, secretKey []byte, expirationDelta, refreshExpirationDelta time.Duration) echo.MiddlewareFunc {
	jwtAppName = appName
	appJWTConfig.SigningKey = secretKey
	jwtExpirationDelta = expirationDelta
	jwtRefreshExpirationDelta = refreshExpirationDelta
	return middleware.JWTWithConfig(appJWTConfig)
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
}

func (c Claims) IsAdmin() bool { return session.ParseRole(c.Role) == session.RoleAdmin }

// GetSessionClaims builds the claims for a resolved session.
func GetSessionClaims(ident identity.Identity, role session.Role, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    jwtAppName,
			Subject:   ident.UID,
			Audience:  "DDQuest Mobile",
			ExpiresAt: now.Add(jwtExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         ident.Name,
		Email:        ident.Email,
		Role:         role.String(),
		Verified:     ident.EmailVerified,
	}
}

func authenticate(ctx context.Context, email, pwd string, svc identity.Service, resolver *session.Resolver) (*Claims, error) {
	ident, err := svc.Authenticate(ctx, email, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case identity.ErrInvalidCredentials:
			return nil, errAuthenticationFailed
		case identity.ErrEmailNotVerified:
			// no session for unverified accounts: dispatch a fresh link instead
			_ = svc.RequestEmailVerification(ctx, ident)
			return nil, errEmailNotVerified
		}
		return nil, errors.Wrap(err, "authenticating")
	}

	ident, err = svc.SetLastLogin(ctx, ident)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}

	res := resolver.Resolve(ctx, ident)
	return GetSessionClaims(ident, res.Role), nil
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextIdentity(ctx echo.Context, svc identity.Service, clms ...Claims) (identity.Identity, error) {
	if ident, ok := ctx.Get(contextIdentityKey).(identity.Identity); ok {
		return ident, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return identity.Identity{}, errors.Wrap(err, "getting context claims")
		}
	}

	ident, err := svc.GetByUID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "finding identity by UID")
	}
	ctx.Set(contextIdentityKey, ident)
	return ident, nil
}

func refreshToken(ctx echo.Context, svc identity.Service, resolver *session.Resolver) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	ident, err := getContextIdentity(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context identity")
	}

	// check that refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jwtRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	res := resolver.Resolve(ctx.Request().Context(), ident)
	newClaims := GetSessionClaims(ident, res.Role, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
