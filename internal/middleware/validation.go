package middleware

import (
	"coursequiz/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(v *validation.Validator) *ValidationMiddleware {
	return &ValidationMiddleware{validator: v}
}

// ULIDParams rejects requests whose named path parameters are not ULIDs.
func (vm *ValidationMiddleware) ULIDParams(names ...string) fiber.Handler {
	return vm.params(true, names)
}

// KeyParams rejects requests whose named path parameters are empty or not URL-safe keys.
func (vm *ValidationMiddleware) KeyParams(names ...string) fiber.Handler {
	return vm.params(false, names)
}

func (vm *ValidationMiddleware) params(ulid bool, names []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, name := range names {
			if errs := vm.validator.ValidateID(name, c.Params(name), ulid); len(errs) > 0 {
				return errs // handled by ErrorHandler
			}
		}
		return c.Next()
	}
}

// RequestBody parses the JSON body into out and validates it.
func (vm *ValidationMiddleware) RequestBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be valid JSON")
	}
	if errs := vm.validator.ValidateStruct(out); len(errs) > 0 {
		return errs
	}
	return nil
}
