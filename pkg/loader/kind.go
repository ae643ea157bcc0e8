package loader

import (
	"path/filepath"
	"strings"
)

// Kind is the closed set of supported document formats.
type Kind int

const (
	PlainText Kind = iota + 1
	Markdown
	Pdf
	WordProcessor
)

var kindsByExt = map[string]Kind{
	".txt":  PlainText,
	".md":   Markdown,
	".pdf":  Pdf,
	".docx": WordProcessor,
}

func (k Kind) String() string {
	switch k {
	case PlainText:
		return "text"
	case Markdown:
		return "markdown"
	case Pdf:
		return "pdf"
	case WordProcessor:
		return "docx"
	default:
		return "unknown"
	}
}

// KindOf returns the document kind for path based on its extension.
// Extensions match case-sensitively, as lower case only.
func KindOf(path string) (Kind, bool) {
	k, ok := kindsByExt[filepath.Ext(path)]
	return k, ok
}

// Supported reports whether path has a supported extension.
func Supported(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// Extensions returns the supported extensions in a stable order.
func Extensions() []string {
	return []string{".txt", ".md", ".pdf", ".docx"}
}

// ExtensionList returns the supported extensions joined for messages.
func ExtensionList() string {
	return strings.Join(Extensions(), ", ")
}
