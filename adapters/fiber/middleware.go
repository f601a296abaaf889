// Package authnfiber provides a Fiber middleware for goAuthn.
//
// The middleware reads a bearer token from the Authorization header and
// resolves its subject with an authn.Client. On success the subject is
// stored in c.Locals(SubjectLocalsKey). On failure a JSON error is returned
// with status 401, or 503 when signing keys could not be fetched.
//
// Concurrency: All exported functions are safe for concurrent use.
package authnfiber

import (
	"github.com/gofiber/fiber/v2"
	"github.com/keksclan/goAuthn/adapters/common"
)

// SubjectLocalsKey is the c.Locals key holding the verified subject.
const SubjectLocalsKey = "authn.subject"

// Option configures the middleware.
type Option = common.Option

var (
	WithRequiredMetadata = common.WithRequiredMetadata
	WithAnonymous        = common.WithAnonymous
)

type headerExtractor struct {
	c *fiber.Ctx
}

func (e headerExtractor) Get(key string) (string, bool) {
	val := e.c.Get(key)
	return val, val != ""
}

// Middleware returns a Fiber handler that authenticates requests with r,
// usually an *authn.Client.
func Middleware(r common.SubjectResolver, opts ...Option) fiber.Handler {
	o := common.BuildOptions(opts)
	return func(c *fiber.Ctx) error {
		if err := o.RequiredMeta.Validate(headerExtractor{c: c}); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		sub, err := common.Authenticate(c.UserContext(), r, c.Get(fiber.HeaderAuthorization), o.AllowAnonymous)
		if err != nil {
			return c.Status(common.HTTPStatus(err)).JSON(fiber.Map{
				"error": common.PublicMessage(err),
			})
		}

		c.Locals(SubjectLocalsKey, sub)
		return c.Next()
	}
}

// SubjectFromLocals returns the subject stored by the middleware, or "" for
// anonymous requests.
func SubjectFromLocals(c *fiber.Ctx) string {
	v, _ := c.Locals(SubjectLocalsKey).(string)
	return v
}
