package handlers

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/services"
)

var registerOnce sync.Once

// RegisterValidators adds the custom rules used in request DTOs to gin's
// validator: notiftype (a known notification type) and tag (a well-formed
// question tag, case-insensitive; blanks are dropped later). Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notiftype", func(fl validator.FieldLevel) bool {
			return domain.NotificationType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("tag", func(fl validator.FieldLevel) bool {
			t := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			return t == "" || services.ValidTag(t)
		})
	})
}

// validationMessage renders the first failed rule as a client message.
func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "notiftype":
		return "invalid notification type"
	case "tag":
		return fmt.Sprintf("invalid tag: %v", fe.Value())
	}
	return fmt.Sprintf("%s is invalid", field)
}
