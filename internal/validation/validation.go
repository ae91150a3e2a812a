package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Алфавит коротких кодов (62 символа)
const CodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Причины отклонения ввода
const (
	ReasonCode = "must be 6-8 alphanumeric characters"
	ReasonURL  = "must be a valid http(s) URL"
)

var (
	// ErrInvalid базовая ошибка валидации, с ней совпадает любой *Error
	ErrInvalid = errors.New("validation failed")

	codePattern    = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)
	httpPattern    = regexp.MustCompile(`(?i)^https?://`)
	anySchemeRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// Error описывает отклонённое поле ввода
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return e.Field + " " + e.Reason
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// ValidateCode обрезает пробелы и проверяет формат короткого кода
func ValidateCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if !codePattern.MatchString(code) {
		return "", &Error{Field: "code", Reason: ReasonCode}
	}
	return code, nil
}

// ValidateURL нормализует URL (добавляет https:// при отсутствии схемы)
// и проверяет, что результат является абсолютным http(s) URL
func ValidateURL(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", &Error{Field: "url", Reason: ReasonURL}
	}

	if !httpPattern.MatchString(raw) {
		// ftp://, mailto:// и т.п. не получают https:// префикс
		if anySchemeRegex.MatchString(raw) {
			return "", &Error{Field: "url", Reason: ReasonURL}
		}
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
		return "", &Error{Field: "url", Reason: ReasonURL}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &Error{Field: "url", Reason: ReasonURL}
	}

	return raw, nil
}
