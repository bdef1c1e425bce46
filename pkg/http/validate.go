package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	validate  *validator.Validate
	symbolRex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,11}$`)
)

func init() {
	validate = validator.New()
	// report json/query/param names instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = validate.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolRex.MatchString(fl.Field().String())
	})
}

// ReadAndValidateRequest binds path, query and body into req, applies `default` tags
// and validates. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := defaults.Set(req); err != nil {
		return validatorDefaultRules(err)
	}
	if err := c.Bind(req); err != nil {
		return validatorDefaultRules(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validatorDefaultRules(err)
	}
	return nil
}

// tagRule renders one validator tag. param is the tag argument; the message
// template receives the field name and param.
type tagRule struct {
	message  string
	paramKey string
}

var tagRules = map[string]tagRule{
	"required": {message: "%s is required"},
	"symbol":   {message: "%s must be a ticker symbol"},
	"min":      {message: "%s must be at least %s", paramKey: "min"},
	"gte":      {message: "%s must be greater than or equal to %s", paramKey: "min"},
	"max":      {message: "%s must be at most %s", paramKey: "max"},
	"lte":      {message: "%s must be less than or equal to %s", paramKey: "max"},
	"gt":       {message: "%s must be greater than %s", paramKey: "value"},
	"lt":       {message: "%s must be less than %s", paramKey: "value"},
	"oneof":    {message: "%s must be one of: %s", paramKey: "options"},
}

func validatorDefaultRules(err error) interface{} {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: msg}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) ValidationError {
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: fe.Field()}
	rule, ok := tagRules[fe.Tag()]
	if !ok {
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return ve
	}

	param := fe.Param()
	var shown interface{} = param
	if fe.Tag() == "oneof" {
		opts := strings.Fields(param)
		shown = opts
		param = strings.Join(opts, ", ")
	}
	if strings.Count(rule.message, "%s") == 2 {
		ve.Message = fmt.Sprintf(rule.message, fe.Field(), param)
	} else {
		ve.Message = fmt.Sprintf(rule.message, fe.Field())
	}
	if fe.Type().Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
		ve.Message += " characters"
	}
	if rule.paramKey != "" {
		ve.Params = map[string]interface{}{rule.paramKey: shown}
	}
	return ve
}
