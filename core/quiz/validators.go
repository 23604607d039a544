package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

var (
	qTypeTag  = "qtype"
	qTypeText = "must be one of: MCQ, TRUE_FALSE, SHORT_ANSWER"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(qTypeTag, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(QuestionType)
		return ok && t.IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, qTypeTag, qTypeText)
}
