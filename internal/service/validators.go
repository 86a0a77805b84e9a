package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/straywatch/straywatch-api/internal/models"
)

var rfidPattern = regexp.MustCompile(`^[0-9]{9}$`)

// registerEnumValidators installs the closed-enum validators shared by the
// lifecycle services. Registering twice on a shared instance is harmless.
func registerEnumValidators(v *validator.Validate) {
	_ = v.RegisterValidation("incident_type", func(fl validator.FieldLevel) bool {
		switch models.IncidentType(fl.Field().String()) {
		case models.IncidentTypeBite, models.IncidentTypeStray, models.IncidentTypeLost,
			models.IncidentTypeInjured, models.IncidentTypeAggressive:
			return true
		default:
			return false
		}
	})
	_ = v.RegisterValidation("incident_priority", func(fl validator.FieldLevel) bool {
		switch models.IncidentPriority(fl.Field().String()) {
		case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
			return true
		default:
			return false
		}
	})
	_ = v.RegisterValidation("animal_sex", func(fl validator.FieldLevel) bool {
		switch models.AnimalSex(fl.Field().String()) {
		case models.AnimalSexMale, models.AnimalSexFemale, models.AnimalSexUnknown:
			return true
		default:
			return false
		}
	})
	_ = v.RegisterValidation("patrol_outcome", func(fl validator.FieldLevel) bool {
		switch models.PatrolOutcome(fl.Field().String()) {
		case models.OutcomeCaptured, models.OutcomeNotFound, models.OutcomeRescheduled:
			return true
		default:
			return false
		}
	})
	_ = v.RegisterValidation("rfid", func(fl validator.FieldLevel) bool {
		return rfidPattern.MatchString(fl.Field().String())
	})
}
