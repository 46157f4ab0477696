package roster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator checks rows against a Schema.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator constructs a validator. now defaults to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}
	// dob_window=N accepts dates from N years ago through tomorrow.
	_ = v.validate.RegisterValidation("dob_window", v.dobWindow)
	return v
}

func (v *Validator) dobWindow(fl validator.FieldLevel) bool {
	years, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	dob, ok := ParseDate(fl.Field().String())
	if !ok {
		return false
	}
	// ParseDate yields UTC midnight, so compare against the clock's calendar
	// date at UTC midnight too.
	y, m, d := v.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	earliest := today.AddDate(-years, 0, 0)
	latest := today.AddDate(0, 0, 1)
	return !dob.Before(earliest) && !dob.After(latest)
}

// Validate checks raw against schema. It returns the normalized field set and
// the list of failures; a row is valid when the list is empty.
func (v *Validator) Validate(schema *Schema, raw map[string]string) (map[string]string, []string) {
	fields := make(map[string]string, len(raw))
	for k, val := range raw {
		if val = strings.TrimSpace(val); val != "" {
			fields[k] = val
		}
	}

	var problems []string
	for _, rule := range schema.Fields {
		value, present := fields[rule.Name]
		if !present {
			if rule.Required {
				problems = append(problems, rule.Name+" is required")
			}
			continue
		}
		if msg := v.check(rule, value); msg != "" {
			problems = append(problems, msg)
		}
	}
	return fields, problems
}

func (v *Validator) check(rule FieldRule, value string) string {
	var typed any = value
	switch rule.Kind {
	case KindInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return rule.Name + " must be a number"
		}
		typed = n
	case KindDate:
		if _, ok := ParseDate(value); !ok {
			return rule.Name + " must be a date (MM/DD/YYYY)"
		}
	}
	if rule.Tag == "" {
		return ""
	}
	if err := v.validate.Var(typed, rule.Tag); err != nil {
		return describe(rule.Name, err)
	}
	return ""
}

func describe(field string, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Sprintf("%s is invalid: %v", field, err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	case "dob_window":
		return fmt.Sprintf("%s must fall within the last %s years", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
