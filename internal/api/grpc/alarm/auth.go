package alarm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationHeader is the metadata key carrying the bearer token.
const AuthorizationHeader = "authorization"

const bearerPrefix = "Bearer "

type requesterKey struct{}

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// Authenticator resolves requesters from HS256 bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator for the shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// RequesterFromContext returns the authenticated requester.
func RequesterFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(requesterKey{}).(string)

	return subject, ok && subject != ""
}

// Unary authenticates unary calls.
func (a *Authenticator) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// Stream authenticates streaming calls.
func (a *Authenticator) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := a.authenticate(stream.Context())
		if err != nil {
			return err
		}

		return handler(srv, &authenticatedStream{ServerStream: stream, ctx: ctx})
	}
}

func (a *Authenticator) authenticate(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	values := md.Get(AuthorizationHeader)
	if len(values) == 0 || !strings.HasPrefix(values[0], bearerPrefix) {
		return nil, status.Error(codes.Unauthenticated, "bearer token is required")
	}

	claims := new(jwt.RegisteredClaims)

	_, err := jwt.ParseWithClaims(strings.TrimPrefix(values[0], bearerPrefix), claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}

		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
	}

	if claims.Subject == "" {
		return nil, status.Error(codes.Unauthenticated, "token subject is required")
	}

	return context.WithValue(ctx, requesterKey{}, claims.Subject), nil
}

type authenticatedStream struct {
	grpc.ServerStream

	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}
