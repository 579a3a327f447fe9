// Package validator wires go-playground/validator into gin with en/zh translations.
// Package validator 将 go-playground/validator 接入 gin，并注册中英文翻译
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/pkg/errors"
)

// Rule 自定义校验规则及其翻译
type Rule struct {
	Tag string
	Fn  func(value string) bool
	// Messages 语言 -> 文案，{0} 为字段名
	Messages map[string]string
}

// CustomValidator gin binding.StructValidator 实现
type CustomValidator struct {
	once     sync.Once
	Validate *validator.Validate
}

// NewCustomValidator 创建验证器
func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

func (v *CustomValidator) lazyinit() {
	v.once.Do(func() {
		v.Validate = validator.New()
		v.Validate.SetTagName("binding")
		v.Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// ValidateStruct 校验结构体，非结构体直接通过
func (v *CustomValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	v.lazyinit()
	return v.Validate.Struct(obj)
}

// Engine 返回底层 *validator.Validate
func (v *CustomValidator) Engine() any {
	v.lazyinit()
	return v.Validate
}

// Setup installs the validator as gin's binding validator, registers the
// custom rules and returns a translator set for en and zh.
// Setup 替换 gin 默认验证器，注册自定义规则，返回中英文翻译器
func Setup(rules ...Rule) (*CustomValidator, *ut.UniversalTranslator, error) {
	cv := NewCustomValidator()
	binding.Validator = cv
	validate := cv.Engine().(*validator.Validate)

	uni := ut.New(en.New(), en.New(), zh.New())
	enTran, _ := uni.GetTranslator("en")
	zhTran, _ := uni.GetTranslator("zh")

	if err := en_translations.RegisterDefaultTranslations(validate, enTran); err != nil {
		return nil, nil, errors.Wrap(err, "register en translations")
	}
	if err := zh_translations.RegisterDefaultTranslations(validate, zhTran); err != nil {
		return nil, nil, errors.Wrap(err, "register zh translations")
	}

	for _, r := range rules {
		if err := register(validate, uni, r); err != nil {
			return nil, nil, err
		}
	}
	return cv, uni, nil
}

func register(validate *validator.Validate, uni *ut.UniversalTranslator, r Rule) error {
	fn := r.Fn
	err := validate.RegisterValidation(r.Tag, func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return fn(fl.Field().String())
	})
	if err != nil {
		return errors.Wrapf(err, "register rule %s", r.Tag)
	}

	for locale, msg := range r.Messages {
		trans, found := uni.GetTranslator(locale)
		if !found {
			continue
		}
		text := msg
		err := validate.RegisterTranslation(r.Tag, trans,
			func(t ut.Translator) error { return t.Add(r.Tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				out, _ := t.T(fe.Tag(), fe.Field())
				return out
			},
		)
		if err != nil {
			return errors.Wrapf(err, "register %s translation for %s", locale, r.Tag)
		}
	}
	return nil
}
