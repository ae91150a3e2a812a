package validation_test

import (
	"errors"
	"testing"

	"github.com/SergeiKhy/linkregistry/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateCode проверяет формат коротких кодов
func TestValidateCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{name: "6 символов", input: "abc123", want: "abc123", valid: true},
		{name: "7 символов", input: "AbC1234", want: "AbC1234", valid: true},
		{name: "8 символов", input: "ABCDEFGH", want: "ABCDEFGH", valid: true},
		{name: "пробелы обрезаются", input: "  abc123\t", want: "abc123", valid: true},
		{name: "слишком короткий", input: "ab12", valid: false},
		{name: "5 символов", input: "abc12", valid: false},
		{name: "9 символов", input: "abcdefghi", valid: false},
		{name: "дефис", input: "abc-123", valid: false},
		{name: "подчёркивание", input: "abc_123", valid: false},
		{name: "юникод", input: "abcдефг", valid: false},
		{name: "пробел внутри", input: "abc 123", valid: false},
		{name: "пустая строка", input: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := validation.ValidateCode(tt.input)
			if !tt.valid {
				require.Error(t, err)
				assert.ErrorIs(t, err, validation.ErrInvalid)
				assert.Empty(t, code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

// TestValidateURL проверяет нормализацию и валидацию URL
func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{name: "без схемы", input: "example.com/x", want: "https://example.com/x", valid: true},
		{name: "только домен", input: "example.com", want: "https://example.com", valid: true},
		{name: "https без изменений", input: "https://example.com/path?q=1", want: "https://example.com/path?q=1", valid: true},
		{name: "http без изменений", input: "http://example.com", want: "http://example.com", valid: true},
		{name: "схема в верхнем регистре", input: "HTTPS://Example.com", want: "HTTPS://Example.com", valid: true},
		{name: "пробелы обрезаются", input: "  example.com  ", want: "https://example.com", valid: true},
		{name: "ftp отклоняется", input: "ftp://x", valid: false},
		{name: "mailto отклоняется", input: "mailto://user@example.com", valid: false},
		{name: "пустая строка", input: "   ", valid: false},
		{name: "пробел в хосте", input: "not a url", valid: false},
		{name: "только схема", input: "https://", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validation.ValidateURL(tt.input)
			if !tt.valid {
				require.Error(t, err)
				assert.ErrorIs(t, err, validation.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestError_Reason(t *testing.T) {
	_, err := validation.ValidateURL("ftp://x")

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "url", verr.Field)
	assert.Equal(t, validation.ReasonURL, verr.Reason)
	assert.Equal(t, "url must be a valid http(s) URL", verr.Error())
}
