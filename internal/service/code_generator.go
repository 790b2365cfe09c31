package service

import (
	"strings"

	"github.com/MSSkowron/MicroURL/internal/config"
	"github.com/MSSkowron/MicroURL/pkg/rand"
)

// CodeGenerator is an interface that defines the methods required for micro code generation.
type CodeGenerator interface {
	// GenerateCode returns a candidate micro code. Codes are not guaranteed to be unused.
	GenerateCode() string
}

// CodeGeneratorImpl implements the CodeGenerator interface by concatenating random vocabulary words.
type CodeGeneratorImpl struct {
	vocabulary []string
	words      int
}

// NewCodeGenerator creates a new CodeGeneratorImpl drawing words entries from vocabulary.
func NewCodeGenerator(vocabulary []string, words int) (*CodeGeneratorImpl, error) {
	if len(vocabulary) == 0 {
		return nil, &config.ConfigurationError{Setting: "VOCABULARY_FILE", Reason: "vocabulary is empty"}
	}
	if words <= 0 {
		return nil, &config.ConfigurationError{Setting: "MICRO_WORDS", Reason: "must be positive"}
	}

	return &CodeGeneratorImpl{
		vocabulary: append([]string(nil), vocabulary...),
		words:      words,
	}, nil
}

// GenerateCode draws the configured number of words independently and uniformly and joins them.
func (g *CodeGeneratorImpl) GenerateCode() string {
	var b strings.Builder
	for i := 0; i < g.words; i++ {
		b.WriteString(rand.Pick(g.vocabulary))
	}
	return b.String()
}
