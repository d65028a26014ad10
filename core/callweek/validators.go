package callweek

import (
	"github.com/go-playground/validator/v10"

	"github.com/coachdesk/backend/core"
)

var (
	callStatusTag  = "callstatus"
	callStatusText = "invalid call status"

	dayNameTag  = "dayname"
	dayNameText = "invalid day name"

	callTypeTag  = "calltype"
	callTypeText = "invalid call type"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(callStatusTag, callStatusValidation)
	core.RegisterCustomTranslation(callStatusTag, callStatusText)

	_ = core.Validate.RegisterValidation(dayNameTag, dayNameValidation)
	core.RegisterCustomTranslation(dayNameTag, dayNameText)

	_ = core.Validate.RegisterValidation(callTypeTag, callTypeValidation)
	core.RegisterCustomTranslation(callTypeTag, callTypeText)
}

// Custom Validators

// callStatusValidation checks that the provided status is a known wire value.
func callStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

// dayNameValidation checks that the provided day is a full English weekday name.
func dayNameValidation(fl validator.FieldLevel) bool {
	_, ok := weekdayOffsets[fl.Field().String()]
	return ok
}

// callTypeValidation checks the senior `call_type` selector.
func callTypeValidation(fl validator.FieldLevel) bool {
	ct := fl.Field().String()
	return ct == CallTypeStudent || ct == CallTypeParent
}
