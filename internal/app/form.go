package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/deadliner/internal/temporal"
)

// addBindings holds the add form's values. Flags prefill it.
type addBindings struct {
	course     string
	assignment string
	date       string
	time       string
	timezone   string
}

func (b *addBindings) complete() bool {
	return strings.TrimSpace(b.course) != "" &&
		strings.TrimSpace(b.assignment) != "" &&
		b.date != "" && b.time != ""
}

// runAddForm prompts for every field, prefilled with what is already known.
func runAddForm(b *addBindings) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Course").
				Placeholder("CS101").
				Value(&b.course).
				Validate(validateRequired("Course")),
			huh.NewInput().
				Title("Assignment").
				Placeholder("Problem set 3").
				Value(&b.assignment).
				Validate(validateRequired("Assignment")),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD").
				Value(&b.date).
				Validate(validateDate),
			huh.NewInput().
				Title("Due Time").
				Placeholder("HH:MM (24-hour)").
				Value(&b.time).
				Validate(validateTime),
			huh.NewInput().
				Title("Timezone").
				Placeholder("IANA name, empty for local").
				Value(&b.timezone).
				Validate(validateZone),
		),
	)
	return form.Run()
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateDate(s string) error {
	_, err := temporal.ResolveDueInstant(s, "00:00", "UTC")
	return fieldError(err)
}

func validateTime(s string) error {
	_, err := temporal.ResolveDueInstant("2000-01-01", s, "UTC")
	return fieldError(err)
}

func validateZone(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown timezone %q", s)
	}
	return nil
}

// fieldError reduces a ValidationError to its reason for inline display.
func fieldError(err error) error {
	var verr *temporal.ValidationError
	if errors.As(err, &verr) {
		return errors.New(verr.Reason)
	}
	return err
}
