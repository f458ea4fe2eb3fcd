// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Constraint rule names reported by FieldConstraintError.
const (
	RuleType      = "type"
	RulePattern   = "pattern"
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleOptions   = "options"
	RuleEmail     = "email"
	RuleURL       = "url"
)

// MissingFieldError reports a required field that was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return e.Field + " is required" }

func (e *MissingFieldError) ErrorCode() cherr.Code { return cherr.CodeCardFormMissingField }

// FieldConstraintError reports a present field that violates a rule.
type FieldConstraintError struct {
	Field   string
	Rule    string
	Message string
}

func (e *FieldConstraintError) Error() string {
	return fmt.Sprintf("%s %s (%s)", e.Field, e.Message, e.Rule)
}

func (e *FieldConstraintError) ErrorCode() cherr.Code { return cherr.CodeCardFormConstraint }

// ValidateFormInput checks values against schema in declaration order and
// returns the sanitized values. Undeclared keys never appear in the result.
// Absent optional fields take their default when one is declared.
func ValidateFormInput(values map[string]any, schema []Field) (map[string]any, error) {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		raw, present := values[f.Name]
		if !present || isEmpty(raw) {
			if f.Required {
				return nil, &MissingFieldError{Field: f.Name}
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		v, err := coerceField(f, raw)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func coerceField(f Field, raw any) (any, error) {
	switch f.Type {
	case FieldNumber:
		return coerceNumber(f, raw)
	case FieldCheckbox:
		return coerceCheckbox(f, raw)
	case FieldSelect:
		s, err := coerceString(f, raw)
		if err != nil {
			return nil, err
		}
		opts := f.SelectOptions()
		if !slices.Contains(opts, s) {
			return nil, constraint(f, RuleOptions, "must be one of [%s]", strings.Join(opts, ", "))
		}
		return s, nil
	default:
		s, err := coerceString(f, raw)
		if err != nil {
			return nil, err
		}
		if err := checkText(f, s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func coerceString(f Field, raw any) (string, error) {
	switch raw.(type) {
	case map[string]any, []any:
		return "", constraint(f, RuleType, "must be a string")
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", constraint(f, RuleType, "must be a string")
	}
	return s, nil
}

func coerceNumber(f Field, raw any) (float64, error) {
	if _, isBool := raw.(bool); isBool {
		return 0, constraint(f, RuleType, "must be a number")
	}
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, constraint(f, RuleType, "must be a number")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, constraint(f, RuleType, "must be a finite number")
	}
	if f.Validation.Min != nil && n < *f.Validation.Min {
		return 0, constraint(f, RuleMin, "must be at least %v", *f.Validation.Min)
	}
	if f.Validation.Max != nil && n > *f.Validation.Max {
		return 0, constraint(f, RuleMax, "must be at most %v", *f.Validation.Max)
	}
	return n, nil
}

func coerceCheckbox(f Field, raw any) (bool, error) {
	if s, ok := raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes":
			return true, nil
		case "off", "no":
			return false, nil
		}
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, constraint(f, RuleType, "must be a boolean")
	}
	return b, nil
}

func checkText(f Field, s string) error {
	val := f.Validation
	n := utf8.RuneCountInString(s)
	if val.MinLength != nil && n < *val.MinLength {
		return constraint(f, RuleMinLength, "must be at least %d characters", *val.MinLength)
	}
	if val.MaxLength != nil && n > *val.MaxLength {
		return constraint(f, RuleMaxLength, "must be at most %d characters", *val.MaxLength)
	}
	if val.Pattern != "" {
		re, err := regexp.Compile(val.Pattern)
		if err != nil || !re.MatchString(s) {
			return constraint(f, RulePattern, "does not match the required format")
		}
	}

	switch f.Type {
	case FieldEmail:
		if _, err := mail.ParseAddress(s); err != nil {
			return constraint(f, RuleEmail, "must be a valid email address")
		}
	case FieldURL:
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return constraint(f, RuleURL, "must be an absolute http or https URL")
		}
	}
	return nil
}

func constraint(f Field, rule, format string, args ...any) *FieldConstraintError {
	return &FieldConstraintError{Field: f.Name, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
