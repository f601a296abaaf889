package authnfasthttp

import (
	"encoding/json"
	"testing"

	"github.com/keksclan/goAuthn/authn"
	"github.com/keksclan/goAuthn/authntest"
	"github.com/valyala/fasthttp"
)

func newHandler(t *testing.T, iss *authntest.Issuer, opts ...Option) fasthttp.RequestHandler {
	t.Helper()
	client, err := authn.New(authn.Config{Issuer: iss.URL(), Audiences: []string{iss.Audience()}})
	if err != nil {
		t.Fatalf("authn.New: %v", err)
	}
	t.Cleanup(client.Close)

	return Middleware(client, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("sub=" + SubjectFromCtx(ctx))
	}, opts...)
}

func serve(h fasthttp.RequestHandler, headers map[string]string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/whoami")
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	h(&ctx)
	return &ctx
}

func errorField(t *testing.T, ctx *fasthttp.RequestCtx) string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(ctx.Response.Body(), &m); err != nil {
		t.Fatalf("decode error body %q: %v", ctx.Response.Body(), err)
	}
	return m["error"]
}

func TestMiddlewareValidToken(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss)

	ctx := serve(h, map[string]string{"Authorization": "Bearer " + iss.TokenFor("bob")})
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Body()); got != "sub=bob" {
		t.Fatalf("body = %q", got)
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss)

	ctx := serve(h, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if got := errorField(t, ctx); got != "missing authorization header" {
		t.Fatalf("error = %q", got)
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss)

	tok := iss.Mint(map[string]any{"sub": "bob", "exp": 1})
	ctx := serve(h, map[string]string{"Authorization": "Bearer " + tok})
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if got := errorField(t, ctx); got != authn.ErrTokenExpired.Error() {
		t.Fatalf("error = %q", got)
	}
}

func TestMiddlewareKeyFetchFailure(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss)
	iss.SetFailing(true)

	ctx := serve(h, map[string]string{"Authorization": "Bearer " + iss.TokenFor("bob")})
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", ctx.Response.StatusCode())
	}
}

func TestMiddlewareAnonymous(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss, WithAnonymous())

	ctx := serve(h, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK || string(ctx.Response.Body()) != "sub=" {
		t.Fatalf("got %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestMiddlewareRequiredMetadata(t *testing.T) {
	iss := authntest.NewIssuer("app.example.com")
	defer iss.Close()
	h := newHandler(t, iss, WithRequiredMetadata("X-Request-ID"))

	ctx := serve(h, map[string]string{"Authorization": "Bearer " + iss.TokenFor("bob")})
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if iss.JWKSRequests() != 0 {
		t.Fatal("keys fetched before metadata check")
	}
}
