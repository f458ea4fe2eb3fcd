// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Conditions are text/template pipelines evaluated against the card status,
// for example `eq .status "authorized"` or `has .status (list "a" "b")`.
// They gate button visibility only.

// conditionFuncs is the sprig text func map without the helpers that read
// the host environment.
var conditionFuncs = func() template.FuncMap {
	fm := sprig.TxtFuncMap()
	delete(fm, "env")
	delete(fm, "expandenv")
	return fm
}()

func compileCondition(expr string) (*template.Template, error) {
	src := strings.TrimSpace(expr)
	if !strings.HasPrefix(src, "{{") {
		src = "{{ " + src + " }}"
	}
	return template.New("condition").
		Funcs(conditionFuncs).
		Option("missingkey=zero").
		Parse(src)
}

// ParseCondition reports whether expr is a well-formed condition.
func ParseCondition(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := compileCondition(expr)
	return err
}

// EvalCondition evaluates expr against status. An empty expression is true.
func EvalCondition(expr, status string) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	tmpl, err := compileCondition(expr)
	if err != nil {
		return false, err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, map[string]any{"status": status}); err != nil {
		return false, fmt.Errorf("evaluating condition %q: %w", expr, err)
	}
	switch strings.TrimSpace(out.String()) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	default:
		return false, fmt.Errorf("condition %q did not produce a boolean: %q", expr, out.String())
	}
}
