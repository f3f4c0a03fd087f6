// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateInput checks input against the skill's schema and returns the
// violations, empty when the input conforms. A nil schema admits
// everything.
func ValidateInput(s Skill, input map[string]any) ([]string, error) {
	schema := s.InputSchema()
	if schema == nil {
		return nil, nil
	}
	if input == nil {
		input = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, errors.Wrapf(err, "validating input for %q", s.ID())
	}
	var violations []string
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations, nil
}
