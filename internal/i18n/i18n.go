// Package i18n provides locale-aware message printing for console output.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language.
var DefaultLang = language.English

// SupportedLangs are the languages console output is matched against.
var SupportedLangs = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(SupportedLangs)

// MatchLocale maps a POSIX locale string such as "de_DE.UTF-8" to the best
// supported language.
func MatchLocale(locale string) language.Tag {
	if locale == "" || locale == "C" || locale == "POSIX" {
		return DefaultLang
	}
	if i := strings.IndexAny(locale, ".@"); i != -1 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")

	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLang
	}
	matched, _, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := matched.Base()
	return language.Make(base.String())
}

// EnvLocale returns the locale string from LC_ALL, LC_MESSAGES or LANG.
func EnvLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// NewCLIPrinter returns a printer for the system's locale.
func NewCLIPrinter() *message.Printer {
	return message.NewPrinter(MatchLocale(EnvLocale()))
}
