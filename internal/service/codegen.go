package service

import (
	"fmt"

	"github.com/SergeiKhy/linkregistry/internal/validation"
	"github.com/jaevor/go-nanoid"
)

// DefaultCodeLength длина автоматически генерируемых кодов
const DefaultCodeLength = 7

// CodeGenerator выдаёт кандидатов в короткие коды.
// Хранилище не проверяется, коллизии разрешает реестр.
type CodeGenerator interface {
	Generate() (string, error)
}

// CodeGeneratorFunc адаптер обычной функции к CodeGenerator
type CodeGeneratorFunc func() (string, error)

func (f CodeGeneratorFunc) Generate() (string, error) {
	return f()
}

type nanoidGenerator struct {
	next func() string
}

// NewCodeGenerator создаёт криптостойкий генератор кодов из 62-символьного алфавита
func NewCodeGenerator() (CodeGenerator, error) {
	next, err := nanoid.CustomASCII(validation.CodeAlphabet, DefaultCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}
	return &nanoidGenerator{next: next}, nil
}

func (g *nanoidGenerator) Generate() (string, error) {
	return g.next(), nil
}
