package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"omitempty,upper"`
	Tags  []int  `json:"tags" binding:"dive,min=1"`
}

var upperRule = Rule{
	Tag: "upper",
	Fn:  func(s string) bool { return s == strings.ToUpper(s) },
	Messages: map[string]string{
		"en": "{0} must be upper case",
		"zh": "{0}必须为大写",
	},
}

func TestSetup_TranslatesBuiltinAndCustomRules(t *testing.T) {
	cv, uni, err := Setup(upperRule)
	require.NoError(t, err)

	err = cv.ValidateStruct(&sample{Color: "red"})
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	require.Len(t, verrs, 2)

	en, found := uni.GetTranslator("en")
	require.True(t, found)
	msgs := verrs.Translate(en)
	assert.Equal(t, "name is a required field", msgs["sample.name"])
	assert.Equal(t, "color must be upper case", msgs["sample.color"])

	zh, found := uni.GetTranslator("zh")
	require.True(t, found)
	assert.Equal(t, "color必须为大写", verrs.Translate(zh)["sample.color"])
}

type plain struct {
	Tags []int `json:"tags" binding:"dive,min=1"`
}

func TestValidateStruct_SkipsNonStructs(t *testing.T) {
	cv := NewCustomValidator()
	assert.NoError(t, cv.ValidateStruct(nil))
	assert.NoError(t, cv.ValidateStruct("text"))
	var p *plain
	assert.NoError(t, cv.ValidateStruct(p))

	assert.NoError(t, cv.ValidateStruct(&plain{Tags: []int{1, 2}}))
	assert.Error(t, cv.ValidateStruct(&plain{Tags: []int{0}}))
}
