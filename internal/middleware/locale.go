package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const localeKey = "locale"

// defaultLocale is used when Accept-Language is absent or unparseable.
const defaultLocale = "en"

// LanguageDetect resolves a best-effort locale from Accept-Language and
// stashes it on the request context for handlers/templates to consult.
func LanguageDetect() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(localeKey, detectLocale(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

func detectLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return defaultLocale
	}
	first := strings.SplitN(acceptLanguage, ",", 2)[0]
	tag := strings.SplitN(first, ";", 2)[0]
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return defaultLocale
	}
	return tag
}

// Locale reads the locale set by LanguageDetect.
func Locale(c *gin.Context) string {
	if v, ok := c.Get(localeKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultLocale
}
