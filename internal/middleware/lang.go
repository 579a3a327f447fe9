package middleware

import (
	"strings"

	"github.com/haierkeys/db-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// LangWithTranslator 创建带翻译器的语言中间件（支持依赖注入）
func LangWithTranslator(uni *ut.UniversalTranslator) gin.HandlerFunc {

	return func(c *gin.Context) {

		var lang string

		if s, exist := c.GetQuery("lang"); exist {
			lang = s
		} else if s = c.GetHeader("lang"); len(s) != 0 {
			lang = s
		} else if s = c.GetHeader("Accept-Language"); len(s) != 0 {
			lang = strings.SplitN(strings.SplitN(s, ",", 2)[0], "-", 2)[0]
		}

		lang = strings.ToLower(strings.ReplaceAll(lang, "-", "_"))
		if strings.HasPrefix(lang, "zh") {
			lang = code.LangZH
		}

		if uni != nil {
			trans, found := uni.GetTranslator(lang)
			if !found {
				trans, _ = uni.GetTranslator(code.LangEN)
			}
			c.Set("trans", trans)
		}

		_ = code.SetGlobalDefaultLang(lang)

		c.Next()
	}
}
