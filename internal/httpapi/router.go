package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/marketdata"
)

// maxDepth caps the depth query parameter.
const maxDepth = 1000

type Deps struct {
	Books    *engine.Registry
	Trades   *marketdata.Cache
	Gatherer prometheus.Gatherer
}

// NewRouter serves the read-only operational endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":      "ok",
			"order_books": d.Books.Len(),
		})
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/instruments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, d.Books.Instruments())
	})

	r.Route("/instruments/{instrument}", func(r chi.Router) {
		// GET /instruments/{instrument}/book?depth=N
		r.Get("/book", func(w http.ResponseWriter, r *http.Request) {
			inst := chi.URLParam(r, "instrument")
			depth := 10
			if q := r.URL.Query().Get("depth"); q != "" {
				n, err := strconv.Atoi(q)
				if err != nil || n < 0 || n > maxDepth {
					writeProblem(w, r, http.StatusBadRequest, "validation_error", "depth must be between 0 and 1000")
					return
				}
				depth = n
			}
			book, ok := d.Books.Lookup(inst)
			if !ok {
				writeProblem(w, r, http.StatusNotFound, "not_found", "unknown instrument "+inst)
				return
			}
			writeJSON(w, r, http.StatusOK, book.Depth(depth))
		})

		// GET /instruments/{instrument}/last
		r.Get("/last", func(w http.ResponseWriter, r *http.Request) {
			inst := chi.URLParam(r, "instrument")
			if d.Trades == nil {
				writeProblem(w, r, http.StatusNotFound, "not_found", "no trade data")
				return
			}
			lt, ok := d.Trades.Get(inst)
			if !ok {
				writeProblem(w, r, http.StatusNotFound, "not_found", "no trades for "+inst)
				return
			}
			writeJSON(w, r, http.StatusOK, lt)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}
