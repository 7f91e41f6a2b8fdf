// Package health serves the liveness route.
package health

import (
	"net/http"

	"github.com/aanand-mishra/alunos-api/internal/utils/response"
)

// Body is the fixed reply of the health check.
const Body = "API OK"

// Check handles GET /. It never touches the store.
func Check() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.WriteText(w, http.StatusOK, Body)
	}
}
