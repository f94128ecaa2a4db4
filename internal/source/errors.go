package source

import "errors"

// Parse and extraction errors.
var (
	// ErrNoRoot means the document has no <svg> root element.
	ErrNoRoot = errors.New("no <svg> root element")

	// ErrMalformed means the XML stream could not be decoded.
	ErrMalformed = errors.New("malformed svg document")

	// ErrNoGraphic means the text contains no well-formed <svg>…</svg> block.
	ErrNoGraphic = errors.New("no well-formed svg document found")
)
