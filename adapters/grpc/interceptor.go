// Package authngrpc provides gRPC interceptors for goAuthn.
//
// The interceptors read a bearer token from the "authorization" metadata key
// and resolve its subject with an authn.Client. On success the subject is
// injected into the context; retrieve it with SubjectFromContext. Failures
// return codes.Unauthenticated, or codes.Unavailable when signing keys could
// not be fetched.
//
// Concurrency: All exported functions are safe for concurrent use.
package authngrpc

import (
	"context"
	"strings"

	"github.com/keksclan/goAuthn/adapters/common"
	"github.com/keksclan/goAuthn/authn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey struct{}

// SubjectFromContext returns the subject stored by the interceptor. ok is
// false when the interceptor did not run.
func SubjectFromContext(ctx context.Context) (sub string, ok bool) {
	sub, ok = ctx.Value(contextKey{}).(string)
	return sub, ok
}

// Option configures the interceptors.
type Option = common.Option

var (
	WithRequiredMetadata = common.WithRequiredMetadata
	WithAnonymous        = common.WithAnonymous
)

// UnaryServerInterceptor returns a unary interceptor that authenticates
// calls with r, usually an *authn.Client.
func UnaryServerInterceptor(r common.SubjectResolver, opts ...Option) grpc.UnaryServerInterceptor {
	o := common.BuildOptions(opts)
	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		newCtx, err := authenticate(ctx, r, &o)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(r common.SubjectResolver, opts ...Option) grpc.StreamServerInterceptor {
	o := common.BuildOptions(opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		_ *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		newCtx, err := authenticate(ss.Context(), r, &o)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: newCtx})
	}
}

// wrappedStream overrides the context of a grpc.ServerStream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

type mdExtractor struct {
	md metadata.MD
}

func (e mdExtractor) Get(key string) (string, bool) {
	vals := e.md.Get(strings.ToLower(key))
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func authenticate(ctx context.Context, r common.SubjectResolver, o *common.AdapterOptions) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	if err := o.RequiredMeta.Validate(mdExtractor{md: md}); err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}

	var header string
	if vals := md.Get("authorization"); len(vals) > 0 {
		header = vals[0]
	}

	sub, err := common.Authenticate(ctx, r, header, o.AllowAnonymous)
	if err != nil {
		code := codes.Unauthenticated
		if authn.IsRetryable(err) {
			code = codes.Unavailable
		}
		return ctx, status.Error(code, common.PublicMessage(err))
	}
	return context.WithValue(ctx, contextKey{}, sub), nil
}
