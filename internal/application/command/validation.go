// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// commandValidator returns the shared validator with custom rules registered.
func commandValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		registerCustomValidators(validate)
	})
	return validate
}

func registerCustomValidators(v *validator.Validate) {
	// Category must be empty or one of skill.Categories.
	_ = v.RegisterValidation("skill_category", func(fl validator.FieldLevel) bool {
		return skill.IsKnownCategory(fl.Field().String())
	})

	// Trimmed name must still satisfy the length bounds checked by min/max.
	_ = v.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// validateCommand runs struct validation and converts the failures into one
// DomainError of kind ErrValidation.
func validateCommand(op string, cmd any) error {
	err := commandValidator().Struct(cmd)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError("skill", op, shared.ErrValidation, "invalid command", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return shared.NewDomainError("skill", op, shared.ErrValidation, strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "not_blank":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "skill_category":
		return fmt.Sprintf("%s %q is not a known category", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// requireUser rejects commands issued without a signed-in user.
func requireUser(op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return shared.NewDomainError("skill", op, shared.ErrNotAuthenticated, "user id is required")
	}
	return nil
}
