package provider

import (
	"context"
	"os"

	"github.com/ivlev/concept2video/internal/domain"
)

// Static answers every concept with the same document. Useful offline and
// in tests.
type Static struct {
	SVG  string
	Path string // read on each call when SVG is empty
}

func (s *Static) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Wrap(domain.KindCancelled, "static", err)
	}
	if s.SVG != "" {
		return s.SVG, nil
	}
	if s.Path == "" {
		return "", domain.Wrap(domain.KindProvider, "static", ErrEmptyResponse)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", domain.Wrap(domain.KindProvider, "static", err)
	}
	return nonEmpty("static", string(data))
}
