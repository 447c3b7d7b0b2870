package claims

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateSubmission checks a submission and returns a *domain.ValidationError
// naming every offending field.
func validateSubmission(s Submission) error {
	verr := &domain.ValidationError{}

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating submission: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe), fieldMessage(fe))
		}
	}

	// Date is a struct, so "required" cannot see its zero value
	if s.Receipt.Date.IsZero() {
		verr.Add("receiptData.date", "date is required")
	}
	if math.IsInf(s.Receipt.Total, 0) {
		verr.Add("receiptData.total", "total must be a finite number")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// fieldPath drops the root struct name from the namespace:
// "Submission.receiptData.vendor" becomes "receiptData.vendor".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
