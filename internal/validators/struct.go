package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/campusbuzz/backend/internal/models"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the edu_email tag registered
// and field names reported by their JSON name.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("edu_email", func(fl validator.FieldLevel) bool {
			return IsEducationalEmail(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Struct validates s and converts failures into field errors in declaration
// order. It returns nil when s is valid.
func Struct(s interface{}) []models.FieldError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "edu_email":
		if err := ValidateEmailDomain(fe.Value().(string)); err != nil {
			return err.Error()
		}
		return ErrEmailNotEducational.Error()
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email":
		return ErrEmailInvalid.Error()
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
