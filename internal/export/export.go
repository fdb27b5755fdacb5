// Package export renders a generated PRDDocument into the wire formats named
// in §6: markdown, html, and json today; pdf and docx are stubbed pending a
// renderer this build can vendor.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/prdforge/prdforge/internal/errs"
	"github.com/prdforge/prdforge/pkg/schema"
)

// Format is the closed set of export variants.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// Render produces doc's bytes in the requested format along with the MIME
// type a caller should set on the response.
func Render(doc *schema.PRDDocument, format Format) ([]byte, string, error) {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(doc), "text/markdown; charset=utf-8", nil
	case FormatHTML:
		b, err := renderHTML(doc)
		return b, "text/html; charset=utf-8", err
	case FormatJSON:
		b, err := renderJSON(doc)
		return b, "application/json", err
	case FormatPDF, FormatDOCX:
		return nil, "", errs.New(errs.ProcessingFailed, fmt.Sprintf("%s export is not available in this build", format))
	default:
		return nil, "", errs.New(errs.Validation, fmt.Sprintf("unknown export format %q", format))
	}
}

func renderMarkdown(doc *schema.PRDDocument) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if doc.Confidence > 0 {
		fmt.Fprintf(&b, "_Confidence: %.0f%%_\n\n", doc.Confidence*100)
	}
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Content)
	}
	return []byte(b.String())
}

const htmlDocumentTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Confidence}}<p><em>Confidence: {{.ConfidencePct}}%</em></p>{{end}}
{{range .Sections}}<section>
<h2>{{.Title}}</h2>
<p>{{.Content}}</p>
</section>
{{end}}
</body>
</html>
`

type htmlDocumentData struct {
	Title         string
	Confidence    float64
	ConfidencePct int
	Sections      []schema.PRDSection
}

func renderHTML(doc *schema.PRDDocument) ([]byte, error) {
	tmpl, err := template.New("document").Parse(htmlDocumentTemplate)
	if err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, "parse export template", err)
	}

	data := htmlDocumentData{
		Title:         doc.Title,
		Confidence:    doc.Confidence,
		ConfidencePct: int(doc.Confidence * 100),
		Sections:      doc.Sections,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, "render html export", err)
	}
	return buf.Bytes(), nil
}

func renderJSON(doc *schema.PRDDocument) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, "marshal json export", err)
	}
	return b, nil
}
