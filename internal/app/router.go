package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/customers"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/locations"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/taxes"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/sales/quotations"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ProductsHandler    *products.Handler
	LocationsHandler   *locations.Handler
	CustomersHandler   *customers.Handler
	SuppliersHandler   *suppliers.Handler
	TaxesHandler       *taxes.Handler
	InventoryHandler   *inventory.Handler
	QuotationsHandler  *quotations.Handler
	InvoicesHandler    *invoices.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		params.ProductsHandler.MountRoutes(r)
		params.LocationsHandler.MountRoutes(r)
		params.CustomersHandler.MountRoutes(r)
		params.SuppliersHandler.MountRoutes(r)
		params.TaxesHandler.MountRoutes(r)
		params.InventoryHandler.MountRoutes(r)
		params.QuotationsHandler.MountRoutes(r)
		params.InvoicesHandler.MountRoutes(r)
		params.ProcurementHandler.MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
