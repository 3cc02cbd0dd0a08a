package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/saas/controlplane/internal/domain/tenant"
)

// RegisterValidators installs custom binding validators. Called once at
// startup before routes are served.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	// subdomain: a legal DNS host label per the tenant domain rules
	return v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return tenant.ValidateSubdomain(fl.Field().String()) == nil
	})
}
