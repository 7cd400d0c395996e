package provision

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/crontab"
	"github.com/panelkit/hostpanel/internal/dbengine"
	"github.com/panelkit/hostpanel/internal/sites"
)

var (
	dbIdentRegex  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	ftpUserRegex  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{2,31}$`)
	usernameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{2,31}$`)
)

// newValidator builds the request validator with the panel's custom tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	register := func(tag string, fn func(string) bool) {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	register("dbident", dbIdentRegex.MatchString)
	register("dbname", func(s string) bool { return !dbengine.IsReservedDatabase(s) })
	register("dbuser", func(s string) bool { return !dbengine.IsReservedUser(s) })
	register("ftpuser", ftpUserRegex.MatchString)
	register("username", usernameRegex.MatchString)
	register("sitedomain", sites.IsValidDomain)
	register("cronexpr", func(s string) bool { return crontab.ValidateSchedule(s) == nil })
	register("singleline", func(s string) bool { return !strings.ContainsAny(s, "\r\n") })
	return v
}

var validate = newValidator()

// validateRequest flattens validator errors into one validation error.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s characters", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "dbident":
		return fmt.Sprintf("%s may only contain letters, digits and underscores", fe.Field())
	case "dbname", "dbuser":
		return fmt.Sprintf("%s %q is reserved by the database server", fe.Field(), fe.Value())
	case "cronexpr":
		return fmt.Sprintf("%s is not a valid 5-field cron expression", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
