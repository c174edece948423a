package usecases

import (
	"nexus.backend/pkg/crypto"
)

// CodeGenerator produces human-typeable verification codes
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws XXX-XXX codes uniformly from LinkCodeAlphabet
type RandomCodeGenerator struct {
	randomString func(alphabet string, n int) (string, error)
}

func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{randomString: crypto.RandomString}
}

func (g *RandomCodeGenerator) Generate() (string, error) {
	raw, err := g.randomString(LinkCodeAlphabet, 2*LinkCodeGroupLength)
	if err != nil {
		return "", err
	}
	return raw[:LinkCodeGroupLength] + "-" + raw[LinkCodeGroupLength:], nil
}
