package renderer

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.tmpl
var templates embed.FS

var (
	mu     sync.Mutex
	parsed = map[TemplateName]*template.Template{}
)

// Render merges the named template with data. Parsed templates are cached;
// rendering the same template for every service revision is the common case.
func Render(name TemplateName, data any) (string, error) {
	t, err := lookup(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template %q: %w", name, err)
	}
	return buf.String(), nil
}

func lookup(name TemplateName) (*template.Template, error) {
	mu.Lock()
	defer mu.Unlock()

	if t, ok := parsed[name]; ok {
		return t, nil
	}

	t, err := template.New(string(name)).
		Funcs(sprig.TxtFuncMap()).
		ParseFS(templates, "templates/"+string(name))
	if err != nil {
		return nil, fmt.Errorf("parsing template %q: %w", name, err)
	}
	parsed[name] = t
	return t, nil
}
