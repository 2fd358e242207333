package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"demandboard/internal/config"
	"demandboard/internal/domain"
	"demandboard/internal/engine"
	"demandboard/internal/logger"
	"demandboard/internal/repo"
)

const requestIDHeader = "X-Request-Id"

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *logger.Logger
	// Settings supplies board titles and server options; nil means defaults.
	Settings *config.Config
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"invalid demand: description is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the demand API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	log := logger.OrNop(cfg.Logger)

	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(corsMiddleware(settings.Server.CORSOrigins))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Demand Board API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	joined := settings.Server.JoinedLists
	registerDocs(router, basePath)
	registerBanner(group, cfg.Engine, settings)
	registerHealth(group)
	registerDemands(group, cfg.Engine, joined)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ie engine.InvalidError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"problems": ie.Problems})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalid) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestLogger tags every request with an id (reusing the caller's when
// present) and logs one line when it completes.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request failed", fields...)
				return
			}
			log.Info("request", fields...)
		})
	}
}

// corsMiddleware answers preflight requests and sets the allow headers for
// the configured origins. "*" allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !(allowAll || allowed[origin]) {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", requestIDHeader)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Demand Board API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerBanner(api huma.API, e engine.Engine, settings *config.Config) {
	huma.Register(api, huma.Operation{
		OperationID: "banner",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "API banner with per-category counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BannerResponse `json:"body"`
	}, error) {
		counts, err := e.Repo.CountDemandsByCategory(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BannerResponse `json:"body"`
		}{Body: BannerResponse{
			Message: "Weekly Demand Management API",
			Board:   settings.Board.Title,
			Team:    settings.Team.Name,
			Counts:  counts,
		}}, nil
	})
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDemands(api huma.API, e engine.Engine, joined bool) {
	huma.Register(api, huma.Operation{
		OperationID: "list-demands",
		Method:      http.MethodGet,
		Path:        "/demands",
		Summary:     "List demands",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Priority    string `query:"priority" doc:"high, medium, low or all"`
		Subgroup    string `query:"subgroup" doc:"sub-group name or all"`
		Responsible string `query:"responsible" doc:"person name or all"`
		Category    string `query:"category" doc:"last_week, this_week, stalled or all"`
	}) (*struct {
		Body []DemandResponse `json:"body"`
	}, error) {
		filters := repo.DemandFilters{
			Subgroup:    queryValue(input.Subgroup),
			Responsible: queryValue(input.Responsible),
		}
		if p := queryValue(input.Priority); p != "" {
			prio, err := domain.ParsePriority(p)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"priority": p})
			}
			filters.Priority = string(prio)
		}
		if c := queryValue(input.Category); c != "" {
			cat, err := domain.ParseCategory(c)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"category": c})
			}
			filters.Category = string(cat)
		}
		items, err := e.Repo.ListDemands(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DemandResponse `json:"body"`
		}{Body: mapDemands(items, joined)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-demand",
		Method:        http.MethodPost,
		Path:          "/demands",
		Summary:       "Create demand",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateDemandRequest `json:"body"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		draft, err := input.Body.draft()
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		d, err := e.CreateDemand(ctx, draft)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d, joined)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-demand",
		Method:      http.MethodGet,
		Path:        "/demands/{id}",
		Summary:     "Get demand",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		d, err := e.Repo.GetDemand(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d, joined)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-demand",
		Method:      http.MethodPut,
		Path:        "/demands/{id}",
		Summary:     "Update demand fields",
		Description: "Only the fields present in the body are changed.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateDemandRequest `json:"body"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		raw := rawBodyMap(ctx)
		for _, field := range []string{"subgroup", "responsible"} {
			if v, ok := raw[field]; ok && isNullRaw(v) {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", field+" must not be null", nil)
			}
		}
		patch, err := input.Body.patch()
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		d, err := e.UpdateDemand(ctx, input.ID, patch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d, joined)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-demand",
		Method:      http.MethodDelete,
		Path:        "/demands/{id}",
		Summary:     "Delete demand",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		if err := e.DeleteDemand(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Demand deleted successfully"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-delete-demands",
		Method:      http.MethodPost,
		Path:        "/demands/bulk-delete",
		Summary:     "Delete several demands",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BulkDeleteRequest `json:"body"`
	}) (*struct {
		Body BulkDeleteResponse `json:"body"`
	}, error) {
		deleted, err := e.BulkDelete(ctx, input.Body.IDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkDeleteResponse `json:"body"`
		}{Body: BulkDeleteResponse{
			Deleted: len(deleted),
			Message: fmt.Sprintf("%d demands deleted successfully", len(deleted)),
		}}, nil
	})
}

// queryValue maps the "all" sentinel and blanks to no filter.
func queryValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	data := bodyBytes(ctx)
	if len(data) == 0 {
		return map[string]json.RawMessage{}
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return map[string]json.RawMessage{}
	}
	return outer
}

func isNullRaw(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && bytes.Equal(trimmed, []byte("null"))
}
