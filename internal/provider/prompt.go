package provider

import "fmt"

// SystemPrompt restricts the model to the primitives the scene mapper
// understands.
const SystemPrompt = `You draw concept diagrams as SVG.
Answer with exactly one complete <svg> document and nothing else.
Use a viewBox and only these elements: rect, circle, ellipse, line, text, g.
Boxes and circles are concepts, lines connect them, text labels them.
Give every shape an explicit fill or stroke color. Do not use paths, gradients, filters, images or scripts.`

// UserPrompt wraps the concept into the request text.
func UserPrompt(concept string) string {
	return fmt.Sprintf("Draw a clear diagram explaining: %s", concept)
}
