// Package authnfasthttp provides a fasthttp middleware for goAuthn.
//
// The middleware reads a bearer token from the Authorization header and
// resolves its subject with an authn.Client. On success the subject is
// stored as the user value SubjectUserValueKey. On failure a JSON error is
// written with status 401, or 503 when signing keys could not be fetched.
//
// Concurrency: All exported functions are safe for concurrent use.
package authnfasthttp

import (
	"context"
	"encoding/json"

	"github.com/keksclan/goAuthn/adapters/common"
	"github.com/valyala/fasthttp"
)

// SubjectUserValueKey is the fasthttp.RequestCtx user value key holding the
// verified subject.
const SubjectUserValueKey = "authn.subject"

// Option configures the middleware.
type Option = common.Option

var (
	WithRequiredMetadata = common.WithRequiredMetadata
	WithAnonymous        = common.WithAnonymous
)

type headerExtractor struct {
	ctx *fasthttp.RequestCtx
}

func (e headerExtractor) Get(key string) (string, bool) {
	val := string(e.ctx.Request.Header.Peek(key))
	return val, val != ""
}

// Middleware wraps next with authentication using r, usually an
// *authn.Client.
func Middleware(r common.SubjectResolver, next fasthttp.RequestHandler, opts ...Option) fasthttp.RequestHandler {
	o := common.BuildOptions(opts)
	return func(ctx *fasthttp.RequestCtx) {
		if err := o.RequiredMeta.Validate(headerExtractor{ctx: ctx}); err != nil {
			writeError(ctx, fasthttp.StatusUnauthorized, err.Error())
			return
		}

		header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
		sub, err := common.Authenticate(context.Background(), r, header, o.AllowAnonymous)
		if err != nil {
			writeError(ctx, common.HTTPStatus(err), common.PublicMessage(err))
			return
		}

		ctx.SetUserValue(SubjectUserValueKey, sub)
		next(ctx)
	}
}

// SubjectFromCtx returns the subject stored by the middleware, or "" for
// anonymous requests.
func SubjectFromCtx(ctx *fasthttp.RequestCtx) string {
	v, _ := ctx.UserValue(SubjectUserValueKey).(string)
	return v
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(map[string]string{"error": msg})
	ctx.SetBody(body)
}
