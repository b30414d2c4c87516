// Package web holds the server-rendered pages of the dashboard.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"crowdwatch/internal/dto"
)

//go:embed templates/*.html
var files embed.FS

const (
	LoginPage     = "login4.html"
	RegisterPage  = "register4.html"
	DashboardPage = "dashboard4.html"
	AdminPage     = "admin.html"
)

// Viewer is the signed-in account shown in the page header.
type Viewer struct {
	Name    string
	Email   string
	Role    string
	IsAdmin bool
}

// Page is the data every template receives.
type Page struct {
	Error              string
	User               *Viewer
	Users              []dto.UserInfo
	AllowRoleSelection bool
}

type Templates struct {
	pages map[string]*template.Template
}

// Parse compiles every page together with the shared layout.
func Parse() (*Templates, error) {
	t := &Templates{pages: make(map[string]*template.Template)}
	for _, name := range []string{LoginPage, RegisterPage, DashboardPage, AdminPage} {
		page, err := template.ParseFS(files, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}

// Render executes page into w. The page is rendered into a buffer first so
// a template error never leaves a half-written response.
func (t *Templates) Render(w io.Writer, name string, data Page) error {
	page, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
