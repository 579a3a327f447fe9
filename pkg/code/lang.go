package code

import (
	"errors"
)

// lang type, used to store English and Chinese text
// lang 类型，用来存储英文和中文文本
type lang struct {
	en   string // English // 英文
	zhCN string // Chinese // 中文
}

const (
	LangEN = "en"
	LangZH = "zh"
)

// Default language is English // 默认语言为英文
var lng = LangEN

// GetMessage returns the message in the global language, falling back to English.
// GetMessage 根据全局语言返回消息，缺失时回退到英文
func (l lang) GetMessage() string {
	if lng == LangZH && l.zhCN != "" {
		return l.zhCN
	}
	return l.en
}

// SetGlobalDefaultLang sets the global default language
// 设置全局默认语言
func SetGlobalDefaultLang(language string) error {
	switch language {
	case LangEN, LangZH:
		lng = language
		return nil
	}
	lng = LangEN
	return errors.New("unsupported language type, set defaulting to " + LangEN)
}

// GetGlobalDefaultLang gets the global default language
// 获取全局默认语言
func GetGlobalDefaultLang() string {
	return lng
}
