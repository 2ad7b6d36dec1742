package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"taptapgo/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	must(v.RegisterValidation("vehicle_type", func(fl validator.FieldLevel) bool {
		return domain.VehicleType(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return domain.PaymentMethod(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("payout_method", func(fl validator.FieldLevel) bool {
		return domain.MethodeRetrait(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("ride_status", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseRideStatus(fl.Field().String())
		return ok
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// bindJSON decodes and validates the request body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondInvalid(c, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondInvalid(c, describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "vehicle_type", "payment_method", "payout_method", "ride_status":
		return fmt.Sprintf("%s: unknown value %q", fe.Field(), fe.Value())
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
