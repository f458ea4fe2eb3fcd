// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// ParseFile decodes a card declaration file. YAML and JSON are both accepted.
// Unknown keys are rejected so that typos surface at load time. The cards
// are not validated; callers run ValidateCard on each.
func ParseFile(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, cherr.Errorf(cherr.CodeCardFileParseInvalid, "card file parse: %s", err)
	}
	return &f, nil
}

// ValidateAll validates every card and returns the failures in order.
func ValidateAll(cards []Card) []error {
	var errs []error
	for _, c := range cards {
		if err := ValidateCard(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
