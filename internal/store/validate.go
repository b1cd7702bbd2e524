package store

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDefinition checks a test definition before anything touches the
// database. Scalar constraints come from struct tags; the control-variant
// invariant (exactly one control, at least one challenger) is checked by hand.
func ValidateDefinition(def *TestDefinition) error {
	def.Normalize()

	if err := validate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Namespace(), Message: verrs[0].Tag() + " constraint violated"}
		}
		return &ValidationError{Message: err.Error()}
	}

	controls := 0
	for _, v := range def.Variants {
		if v.IsControl {
			controls++
		}
	}
	switch {
	case controls == 0:
		return &ValidationError{Field: "variants", Message: "a control variant is required"}
	case controls > 1:
		return &ValidationError{Field: "variants", Message: "exactly one variant may be the control"}
	case controls == len(def.Variants):
		return &ValidationError{Field: "variants", Message: "at least one non-control variant is required"}
	}

	return nil
}
