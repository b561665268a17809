package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	enginegrpc "github.com/therealutkarshpriyadarshi/annknn/pkg/api/grpc"
)

// Handler wraps the gRPC engine client and provides HTTP handlers
type Handler struct {
	client *enginegrpc.EngineClient
}

// NewHandler creates a new REST API handler
func NewHandler(client *enginegrpc.EngineClient) *Handler {
	return &Handler{
		client: client,
	}
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.client.Health(r.Context(), &enginegrpc.HealthCheckRequest{})
	if err != nil {
		writeError(w, fmt.Sprintf("Health check failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// GetStats handles GET /v1/stats and GET /v1/stats/{namespace}
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	namespace := routeStatsNamespace(r.URL.Path)

	resp, err := h.client.GetStats(r.Context(), &enginegrpc.StatsRequest{Namespace: namespace})
	if err != nil {
		writeError(w, fmt.Sprintf("Failed to get stats: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// KnnExact handles POST /v1/knn: exact K nearest neighbors of one query
// vector against a namespace's registered corpus.
func (h *Handler) KnnExact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enginegrpc.KnnExactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.client.KnnExact(r.Context(), &req)
	if err != nil {
		writeError(w, fmt.Sprintf("knn_exact failed: %v", err), http.StatusInternalServerError)
		return
	}

	if resp.Error != nil && *resp.Error != "" {
		writeError(w, *resp.Error, http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// BatchKnnExact handles POST /v1/knn/batch: M queries resolved against the
// same namespace corpus in one call.
func (h *Handler) BatchKnnExact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enginegrpc.BatchKnnExactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.client.BatchKnnExact(r.Context(), &req)
	if err != nil {
		writeError(w, fmt.Sprintf("batch_knn_exact failed: %v", err), http.StatusInternalServerError)
		return
	}

	if resp.Error != nil && *resp.Error != "" {
		writeError(w, *resp.Error, http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// AnnAllToAll handles POST /v1/ann: approximate all-pairs K nearest
// neighbors over a namespace's registered corpus.
func (h *Handler) AnnAllToAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enginegrpc.AnnAllToAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.client.AnnAllToAll(r.Context(), &req)
	if err != nil {
		writeError(w, fmt.Sprintf("ann_all_to_all failed: %v", err), http.StatusInternalServerError)
		return
	}

	if resp.Error != nil && *resp.Error != "" {
		writeError(w, *resp.Error, http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// AddVectors handles POST /v1/vectors: append vectors to a namespace's
// in-memory corpus.
func (h *Handler) AddVectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enginegrpc.AddVectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.client.AddVectors(r.Context(), &req)
	if err != nil {
		writeError(w, fmt.Sprintf("add_vectors failed: %v", err), http.StatusInternalServerError)
		return
	}

	if !resp.Success {
		statusCode := http.StatusInternalServerError
		if resp.Error != nil {
			writeError(w, *resp.Error, statusCode)
		} else {
			writeError(w, "add_vectors failed", statusCode)
		}
		return
	}

	writeJSON(w, resp, http.StatusCreated)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// ServeDocs serves the OpenAPI/Swagger documentation
func ServeDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	content, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		writeError(w, "OpenAPI spec not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// ServeSwaggerUI serves the Swagger UI HTML page
func ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	html := `<!DOCTYPE html>
<html>
<head>
    <title>kNN/ANN Engine API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/docs/openapi.yaml",
                dom_id: '#swagger-ui',
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIBundle.SwaggerUIStandalonePreset
                ],
                layout: "BaseLayout"
            });
        };
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// ParseIntQuery parses an integer query parameter
func ParseIntQuery(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
