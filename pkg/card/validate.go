// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import (
	"fmt"
	"regexp"
	"strings"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

var validTypes = map[Type]bool{
	TypeAction:    true,
	TypeValue:     true,
	TypeStatus:    true,
	TypeComposite: true,
}

var validActionTypes = map[ActionType]bool{
	"":              true,
	ActionPrimary:   true,
	ActionDanger:    true,
	ActionSecondary: true,
}

var validFieldTypes = map[FieldType]bool{
	FieldText:     true,
	FieldPassword: true,
	FieldEmail:    true,
	FieldURL:      true,
	FieldNumber:   true,
	FieldSelect:   true,
	FieldCheckbox: true,
	FieldTextarea: true,
}

// SchemaValidationError lists every problem found in a card definition.
type SchemaValidationError struct {
	CardID   string
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	id := e.CardID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("card %s: %s", id, strings.Join(e.Problems, "; "))
}

func (e *SchemaValidationError) ErrorCode() cherr.Code { return cherr.CodeCardSchemaValidateInvalid }

// ValidateCard checks a card definition and returns a *SchemaValidationError
// naming every problem, or nil.
func ValidateCard(c Card) error {
	v := &cardValidator{card: c}
	v.requiredAttributes()
	v.actions()
	v.formSchema()
	v.toolCall("data_source", c.DataSource)
	v.toolCall("save_action", c.SaveAction)

	if len(v.problems) == 0 {
		return nil
	}
	return &SchemaValidationError{CardID: c.ID, Problems: v.problems}
}

type cardValidator struct {
	card     Card
	problems []string
}

func (v *cardValidator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *cardValidator) requiredAttributes() {
	c := v.card
	if strings.TrimSpace(c.ID) == "" {
		v.addf("card_id is required")
	}
	if c.Type == "" {
		v.addf("type is required")
	} else if !validTypes[c.Type] {
		v.addf("type must be one of [action, value, status, composite], got %q", c.Type)
	}
	if strings.TrimSpace(c.Category) == "" {
		v.addf("category is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		v.addf("title is required")
	}

	switch c.Type {
	case TypeAction:
		if len(c.Actions) == 0 {
			v.addf("action card must declare at least one action")
		}
	case TypeValue:
		if len(c.FormSchema) == 0 {
			v.addf("value card must declare form_schema")
		}
		if c.SaveAction == nil {
			v.addf("value card must declare save_action")
		}
	}
}

func (v *cardValidator) actions() {
	seen := make(map[string]bool, len(v.card.Actions))
	for i, a := range v.card.Actions {
		where := fmt.Sprintf("actions[%d]", i)
		if a.ID == "" {
			v.addf("%s: id is required", where)
		} else if seen[a.ID] {
			v.addf("%s: duplicate action id %q", where, a.ID)
		}
		seen[a.ID] = true

		if !validActionTypes[a.Type] {
			v.addf("%s: type must be one of [primary, danger, secondary], got %q", where, a.Type)
		}
		if err := ParseCondition(a.Condition); err != nil {
			v.addf("%s: condition does not parse: %v", where, err)
		}
		call := a.ToolCall
		v.toolCall(where+".tool_call", &call)
	}
}

func (v *cardValidator) toolCall(where string, tc *ToolCall) {
	if tc == nil {
		return
	}
	if tc.Capability == "" {
		v.addf("%s: capability is required", where)
	}
	if tc.Action == "" {
		v.addf("%s: action is required", where)
	}
}

func (v *cardValidator) formSchema() {
	seen := make(map[string]bool, len(v.card.FormSchema))
	for i, f := range v.card.FormSchema {
		where := fmt.Sprintf("form_schema[%d]", i)
		if f.Name == "" {
			v.addf("%s: name is required", where)
		} else if seen[f.Name] {
			v.addf("%s: duplicate field name %q", where, f.Name)
		}
		seen[f.Name] = true

		if !validFieldTypes[f.Type] {
			v.addf("%s: unknown field type %q", where, f.Type)
		}
		for _, problem := range validationProblems(f) {
			v.addf("%s: %s", where, problem)
		}
	}
}

// validationProblems checks that a field's validation block is internally consistent.
func validationProblems(f Field) []string {
	var out []string
	val := f.Validation
	if val.MinLength != nil && *val.MinLength < 0 {
		out = append(out, "min_length must not be negative")
	}
	if val.MaxLength != nil && *val.MaxLength < 0 {
		out = append(out, "max_length must not be negative")
	}
	if val.MinLength != nil && val.MaxLength != nil && *val.MinLength > *val.MaxLength {
		out = append(out, fmt.Sprintf("min_length %d exceeds max_length %d", *val.MinLength, *val.MaxLength))
	}
	if val.Min != nil && val.Max != nil && *val.Min > *val.Max {
		out = append(out, fmt.Sprintf("min %v exceeds max %v", *val.Min, *val.Max))
	}
	if val.Pattern != "" {
		if _, err := regexp.Compile(val.Pattern); err != nil {
			out = append(out, fmt.Sprintf("pattern %q is not a valid regular expression", val.Pattern))
		}
	}
	if f.Type == FieldSelect && len(f.SelectOptions()) == 0 {
		out = append(out, "select field must declare options")
	}
	return out
}
