package service

import (
	"errors"
	"fmt"

	"github.com/SergeiKhy/linkregistry/internal/repository"
	"github.com/SergeiKhy/linkregistry/internal/validation"
)

// Ошибки реестра ссылок
var (
	ErrValidation  = validation.ErrInvalid
	ErrNotFound    = errors.New("link not found")
	ErrConflict    = errors.New("code already in use")
	ErrUnavailable = repository.ErrUnavailable

	// ErrCapacityExhausted частный случай конфликта: все попытки генерации кода столкнулись
	ErrCapacityExhausted = fmt.Errorf("%w: unable to generate a unique short code", ErrConflict)
)
