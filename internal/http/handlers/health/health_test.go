package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aanand-mishra/alunos-api/internal/http/handlers/health"
)

func TestCheck(t *testing.T) {
	g := NewWithT(t)
	rec := httptest.NewRecorder()

	health.Check()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(rec.Body.String()).To(Equal("API OK"))
}
