package authgate

import "context"

type sourceAddressContextKey struct{}
type userAgentContextKey struct{}

// WithSourceAddress attaches the caller's network address to ctx. The
// engine uses it for throttle keys, session metadata, and audit events.
func WithSourceAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, sourceAddressContextKey{}, addr)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It is
// recorded on sessions so users can recognize their own devices.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func sourceAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	addr, _ := ctx.Value(sourceAddressContextKey{}).(string)
	return addr
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}
