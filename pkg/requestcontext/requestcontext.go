// Package requestcontext carries per-request values (request ID, client
// metadata, authenticated principal) through context.Context.
package requestcontext

import (
	"context"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	clientIPKey
	userAgentKey
	deviceKey
	principalKey
	tokenIDKey
)

// WithRequestID returns a context carrying the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request correlation ID, or "" if unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// ClientIP returns the client origin resolved by the metadata middleware.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// UserAgent returns the raw User-Agent header.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey).(string)
	return v
}

// WithDevice stores a human-readable device label derived from the User-Agent.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey, device)
}

// Device returns the device label, or "" if unset.
func Device(ctx context.Context) string {
	v, _ := ctx.Value(deviceKey).(string)
	return v
}

// WithPrincipal stores the authenticated principal and the jti of the
// access token that proved it.
func WithPrincipal(ctx context.Context, p *domain.Principal, jti domain.TokenID) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenIDKey, jti)
}

// Principal returns the authenticated principal, or nil for anonymous requests.
func Principal(ctx context.Context) *domain.Principal {
	v, _ := ctx.Value(principalKey).(*domain.Principal)
	return v
}

// TokenID returns the jti of the access token that authenticated the request.
func TokenID(ctx context.Context) domain.TokenID {
	v, _ := ctx.Value(tokenIDKey).(domain.TokenID)
	return v
}
