package nutrition

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"FuelLab_V2.0/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxPageSize caps page_size on the JSON search endpoint.
const maxPageSize = 50

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("nutrition").Funcs(template.FuncMap{
		"amount": func(a Amount) string { return strconv.FormatFloat(float64(a), 'f', -1, 64) },
		"upper":  strings.ToUpper,
	}).ParseFS(templateFS, "templates/*.html")
}

// ProductSource is the upstream the handlers read from.
type ProductSource interface {
	Search(ctx context.Context, logger *zerolog.Logger, query string, pageSize int) ([]Product, error)
	Product(ctx context.Context, logger *zerolog.Logger, barcode string) (Product, error)
}

// Handler serves the nutrition pages and JSON endpoints.
type Handler struct {
	source ProductSource
}

// NewHandler returns a Handler reading from source.
func NewHandler(source ProductSource) *Handler {
	return &Handler{source: source}
}

// searchPage is the data passed to index.html and results.html.
type searchPage struct {
	Query   string
	Results []Product
	Error   string
}

// productPage is the data passed to product.html.
type productPage struct {
	Barcode string
	Product *Product
	Error   string
}

/*=================================================================================
									HTML PAGES
=================================================================================*/

// IndexHandler renders the search form.
func (h *Handler) IndexHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", searchPage{})
}

// SearchFormHandler handles the search form post and renders the results page.
func (h *Handler) SearchFormHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	query := strings.TrimSpace(c.FormValue("product_name"))
	if query == "" {
		return c.Render(http.StatusBadRequest, "index.html", searchPage{Error: "Please enter a product name."})
	}

	results, err := h.source.Search(c.Request().Context(), logger, query, 0)
	if err != nil {
		logger.Error().Err(err).Str("query", query).Msg("Product search failed")
		return c.Render(http.StatusBadGateway, "results.html", searchPage{Query: query, Error: "The product database is unavailable right now."})
	}

	return c.Render(http.StatusOK, "results.html", searchPage{Query: query, Results: results})
}

// ProductPageHandler renders the detail page for a barcode.
func (h *Handler) ProductPageHandler(c echo.Context) error {
	logger := utility.GetLogger(c)
	barcode := strings.TrimSpace(c.Param("barcode"))

	product, err := h.source.Product(c.Request().Context(), logger, barcode)
	switch {
	case errors.Is(err, ErrProductNotFound):
		return c.Render(http.StatusNotFound, "product.html", productPage{Barcode: barcode, Error: "Product not found."})
	case err != nil:
		logger.Error().Err(err).Str("barcode", barcode).Msg("Product lookup failed")
		return c.Render(http.StatusBadGateway, "product.html", productPage{Barcode: barcode, Error: "The product database is unavailable right now."})
	}

	return c.Render(http.StatusOK, "product.html", productPage{Barcode: barcode, Product: &product})
}

/*=================================================================================
									JSON API
=================================================================================*/

// HealthHandler reports that the proxy is running.
func (h *Handler) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "Nutrition Check",
	})
}

// APISearchHandler returns search results as JSON.
func (h *Handler) APISearchHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q is required"})
	}

	pageSize := 0
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxPageSize {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "page_size must be between 1 and 50"})
		}
		pageSize = n
	}

	results, err := h.source.Search(c.Request().Context(), logger, query, pageSize)
	if err != nil {
		logger.Error().Err(err).Str("query", query).Msg("Product search failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "product search failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":    query,
		"products": results,
	})
}

// APIProductHandler returns a single product as JSON.
func (h *Handler) APIProductHandler(c echo.Context) error {
	logger := utility.GetLogger(c)
	barcode := strings.TrimSpace(c.Param("barcode"))

	product, err := h.source.Product(c.Request().Context(), logger, barcode)
	switch {
	case errors.Is(err, ErrProductNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "product not found"})
	case err != nil:
		logger.Error().Err(err).Str("barcode", barcode).Msg("Product lookup failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "product lookup failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"product": product})
}
