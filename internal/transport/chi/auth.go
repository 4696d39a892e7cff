package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/docvault/internal/logger"
)

// Role is an access level. Higher roles include every lower one.
type Role int

// Roles in ascending order of privilege.
const (
	RoleNone Role = iota
	RoleViewer
	RoleManager
	RoleRoot
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleManager:
		return "manager"
	case RoleRoot:
		return "root"
	default:
		return "none"
	}
}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "viewer":
		return RoleViewer, nil
	case "manager":
		return RoleManager, nil
	case "root":
		return RoleRoot, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Role    Role
}

type principalKey struct{}

// PrincipalFromContext returns the caller attached by Authenticator.Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Claims are the JWT claims docvault reads.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthOptions configures the Authenticator.
type AuthOptions struct {
	// APIKeys maps static bearer keys to role names.
	APIKeys   map[string]string
	JWTSecret string
	JWTIssuer string
}

// Authenticator resolves bearer credentials to a Principal.
// A bearer token is first looked up as a static API key, then validated as an HS256 JWT.
type Authenticator struct {
	keys   map[string]Role
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator builds an Authenticator. With no keys and no secret
// authentication is disabled and every caller acts as root.
func NewAuthenticator(opts AuthOptions) (*Authenticator, error) {
	keys := make(map[string]Role, len(opts.APIKeys))
	for k, name := range opts.APIKeys {
		if k == "" {
			continue
		}
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		keys[k] = role
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.JWTIssuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.JWTIssuer))
	}

	return &Authenticator{
		keys:   keys,
		secret: []byte(opts.JWTSecret),
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Enabled reports whether credentials are checked.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0 || len(a.secret) > 0
}

var (
	errMissingCredentials = errors.New("missing authorization header")
	errBearerScheme       = errors.New("authorization header must use Bearer scheme")
	errInvalidCredentials = errors.New("invalid credentials")
)

// Authenticate resolves a bearer token.
func (a *Authenticator) Authenticate(token string) (Principal, error) {
	if role, ok := a.keys[token]; ok {
		return Principal{Subject: "api-key", Role: role}, nil
	}
	if len(a.secret) == 0 {
		return Principal{}, errInvalidCredentials
	}

	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", errInvalidCredentials, err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", errInvalidCredentials, err)
	}
	return Principal{Subject: claims.Subject, Role: role}, nil
}

// Middleware attaches the caller's Principal to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			ctx := context.WithValue(r.Context(), principalKey{}, Principal{Subject: "anonymous", Role: RoleRoot})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token, err := bearerToken(r)
		if err == nil {
			var p Principal
			if p, err = a.Authenticate(token); err == nil {
				ctx := context.WithValue(r.Context(), principalKey{}, p)
				ctx = logpkg.WithFields(ctx, zap.String("subject", p.Subject), zap.Stringer("role", p.Role))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		msg := err.Error()
		if errors.Is(err, errInvalidCredentials) {
			msg = errInvalidCredentials.Error()
		}
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
	})
}

// RequireRole rejects callers below min with 403.
func RequireRole(minRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, errMissingCredentials.Error())
				return
			}
			if p.Role < minRole {
				writeError(w, http.StatusForbidden, ErrorCodeForbidden,
					fmt.Sprintf("role %s required", minRole))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errMissingCredentials
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", errBearerScheme
	}
	return auth[len(bearerPrefix):], nil
}
