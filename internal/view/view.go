// Package view renders the public landing page and the admin screens.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// SiteCopy is the fixed text of the landing page.
type SiteCopy struct {
	Brand        string
	Tagline      string
	HeroTitle    string
	HeroText     string
	ContactText  string
	Address      string
	Instagram    string
	InstagramURL string
	Owner        string
}

// DefaultSiteCopy returns the stock landing copy.
func DefaultSiteCopy() SiteCopy {
	return SiteCopy{
		Brand:        "SafeHome",
		Tagline:      "Protección Integral para tu Hogar",
		HeroTitle:    "Seguridad Domiciliaria a tu Alcance",
		HeroText:     "Protege lo que más importa con nuestra tecnología de vanguardia y monitoreo profesional 24/7.",
		ContactText:  "¿Tiene alguna pregunta o desea un presupuesto? Complete el formulario y nos pondremos en contacto con usted a la brevedad.",
		Address:      "San martin sur 7810, Mendoza, Argentina 5505",
		Instagram:    "@seguridaddomiciliaria",
		InstagramURL: "https://www.instagram.com/seguridaddomiciliaria",
		Owner:        "Seguridad Domiciliaria",
	}
}

// LandingData is the input of the landing page.
type LandingData struct {
	Copy    SiteCopy
	Catalog model.Catalog
	Year    int
}

// LoginData is the input of the login page.
type LoginData struct {
	Copy     SiteCopy
	Username string
	Error    string
}

// AdminData is the input of the admin dashboard.
type AdminData struct {
	Copy    SiteCopy
	User    string
	Catalog model.Catalog
	// Accept is the value of the upload inputs' accept attribute.
	Accept string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	copy    SiteCopy
	landing *template.Template
	login   *template.Template
	admin   *template.Template
}

// New parses the embedded templates.
func New(copy SiteCopy) (*Renderer, error) {
	r := &Renderer{copy: copy}
	var err error
	if r.landing, err = parsePage("landing.html"); err != nil {
		return nil, err
	}
	if r.login, err = parsePage("login.html"); err != nil {
		return nil, err
	}
	if r.admin, err = parsePage("admin.html"); err != nil {
		return nil, err
	}
	return r, nil
}

func parsePage(page string) (*template.Template, error) {
	t, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", page, err)
	}
	return t, nil
}

var funcs = template.FuncMap{
	"initial": func(s string) string {
		for _, r := range s {
			return string(r)
		}
		return ""
	},
}

// Copy returns the landing copy the renderer was built with.
func (r *Renderer) Copy() SiteCopy {
	return r.copy
}

// Landing renders the public page.
func (r *Renderer) Landing(w io.Writer, cat model.Catalog) error {
	return execute(w, r.landing, LandingData{Copy: r.copy, Catalog: cat, Year: time.Now().Year()})
}

// Login renders the login form. errMsg is shown above the form when set.
func (r *Renderer) Login(w io.Writer, username, errMsg string) error {
	return execute(w, r.login, LoginData{Copy: r.copy, Username: username, Error: errMsg})
}

// Admin renders the dashboard.
func (r *Renderer) Admin(w io.Writer, user string, cat model.Catalog, accept string) error {
	return execute(w, r.admin, AdminData{Copy: r.copy, User: user, Catalog: cat, Accept: accept})
}

// execute renders into a buffer first so a template error never leaves a
// half-written page behind.
func execute(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", t.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}
