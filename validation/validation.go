// Package validation checks decoded request payloads against named rule
// sets before a handler acts on them.
package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Violations collects the rule failures per attribute. An empty set means
// the payload passed every rule.
type Violations struct {
	Errors map[string][]error
}

func (violations Violations) MarshalJSON() ([]byte, error) {
	errors := make(map[string][]string)
	for fieldName, fieldErrors := range violations.Errors {
		errors[fieldName] = make([]string, len(fieldErrors))
		for index, fieldError := range fieldErrors {
			errors[fieldName][index] = fieldError.Error()
		}
	}

	return json.Marshal(map[string]map[string][]string{
		"errors": errors,
	})
}

func (violations Violations) IsEmpty() bool {
	return len(violations.Errors) == 0
}

// ValidateMap applies the rule sets to the attributes of data. Rules are
// keyed by attribute name; attributes without rules are ignored, but a
// "required" rule fails when the attribute is absent altogether.
func ValidateMap(data map[string]any, rules map[string][]string) Violations {
	var violations Violations
	violations.Errors = make(map[string][]error)

	for attributeName, attributeRules := range rules {
		attributeValue, attributeExists := data[attributeName]

		var errorCollection []error
		for _, attributeRule := range attributeRules {
			if attributeRule == "required" && !attributeExists {
				errorCollection = append(errorCollection, fmt.Errorf("%s is required", attributeName))
				continue
			}
			if !attributeExists {
				continue
			}

			if err := validate(attributeRule, attributeName, attributeValue); err != nil {
				errorCollection = append(errorCollection, err)
			}
		}

		if len(errorCollection) != 0 {
			violations.Errors[attributeName] = errorCollection
		}
	}

	return violations
}

func validate(rule string, name string, value any) error {
	ruleName, ruleArg, _ := strings.Cut(rule, ":")

	switch ruleName {
	case "required":
		{
			err := fmt.Errorf("%s is required", name)

			switch v := value.(type) {
			case nil:
				{
					return err
				}
			case string:
				{
					if v == "" {
						return err
					}
				}
			case []any:
				{
					if len(v) == 0 {
						return err
					}
				}
			}
		}
	case "string":
		{
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%s must be a string", name)
			}
		}
	case "integer":
		{
			switch v := value.(type) {
			case float64:
				{
					if v != float64(int64(v)) {
						return fmt.Errorf("%s must be an integer", name)
					}
				}
			case string:
				{
					if !ValidateInteger(v) {
						return fmt.Errorf("%s must be an integer", name)
					}
				}
			default:
				{
					return fmt.Errorf("%s must be an integer", name)
				}
			}
		}
	case "boolean":
		{
			switch v := value.(type) {
			case bool:
			case string:
				{
					if !ValidateBoolean(v) {
						return fmt.Errorf("%s must be a boolean", name)
					}
				}
			default:
				{
					return fmt.Errorf("%s must be a boolean", name)
				}
			}
		}
	case "min":
		{
			size, err := strconv.Atoi(ruleArg)
			if err != nil {
				return fmt.Errorf("invalid validation rule :: %s", rule)
			}
			if !atLeast(value, size) {
				return fmt.Errorf("%s must be at least %d", name, size)
			}
		}
	case "max":
		{
			size, err := strconv.Atoi(ruleArg)
			if err != nil {
				return fmt.Errorf("invalid validation rule :: %s", rule)
			}
			if !atMost(value, size) {
				return fmt.Errorf("%s must be at most %d", name, size)
			}
		}
	default:
		{
			return fmt.Errorf("invalid validation rule :: %s", rule)
		}
	}

	return nil
}

// atLeast measures strings by length and numbers by value.
func atLeast(value any, size int) bool {
	switch v := value.(type) {
	case string:
		return len(v) >= size
	case float64:
		return v >= float64(size)
	}
	return false
}

func atMost(value any, size int) bool {
	switch v := value.(type) {
	case string:
		return len(v) <= size
	case float64:
		return v <= float64(size)
	}
	return false
}

// Numeric operations
func ValidateInteger(value string) bool {
	_, err := strconv.Atoi(value)
	return err == nil
}

func ValidateGreaterThen(value string, size int) bool {
	valueAsInt, err := strconv.Atoi(value)
	if err != nil {
		return false
	}

	return valueAsInt > size
}

func ValidateLesserThen(value string, size int) bool {
	valueAsInt, err := strconv.Atoi(value)
	if err != nil {
		return false
	}

	return valueAsInt < size
}

// Boolean operations
func ValidateBoolean(value string) bool {
	return ValidateTrue(value) || ValidateFalse(value)
}

func ValidateTrue(value string) bool {
	return value == "1" || value == "true"
}

func ValidateFalse(value string) bool {
	return value == "0" || value == "false"
}

// String operations
func ValidateContains(value string, needle string) bool {
	return strings.Contains(value, needle)
}
