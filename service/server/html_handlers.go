package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/nftmint/service/config"
	"github.com/brojonat/nftmint/service/wallet"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	// Parse all templates from embedded filesystem
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

// pageData is rendered into index.html.
type pageData struct {
	wallet.Snapshot
	CanMint         bool
	Mining          bool
	RequiredChainID string
	ContractAddress string
	CollectionURL   string
	TwitterHandle   string
	TwitterURL      string
}

func newPageData(snap wallet.Snapshot, cfg *config.Config) pageData {
	data := pageData{
		Snapshot:        snap,
		CanMint:         snap.Session.CanMint() && !snap.Operation.Status.Active(),
		Mining:          snap.Operation.Status.Active(),
		RequiredChainID: cfg.RequiredChainID,
		ContractAddress: cfg.ContractAddress,
		CollectionURL:   cfg.CollectionURL,
		TwitterHandle:   cfg.TwitterHandle,
	}
	if cfg.TwitterHandle != "" {
		data.TwitterURL = "https://twitter.com/" + cfg.TwitterHandle
	}
	return data
}

// handleIndexPage serves the minting page.
func handleIndexPage(renderer *TemplateRenderer, ctl Controller, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := renderer.Render(w, "index.html", newPageData(ctl.Snapshot(), cfg)); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
