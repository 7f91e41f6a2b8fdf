package router_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/aanand-mishra/alunos-api/internal/config"
	"github.com/aanand-mishra/alunos-api/internal/http/router"
	"github.com/aanand-mishra/alunos-api/internal/storage/backend"
	"github.com/aanand-mishra/alunos-api/internal/types"
)

// drivers are the file-backed stores every route test runs against,
// opened the same way main opens them.
var drivers = []string{config.DriverSQLite, config.DriverBolt}

// eachBackend runs fn once per driver, each with a fresh store.
func eachBackend(t *testing.T, fn func(t *testing.T, h http.Handler)) {
	t.Helper()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			fn(t, newHandler(t, driver))
		})
	}
}

func newHandler(t *testing.T, driver string) http.Handler {
	t.Helper()
	store, err := backend.Open(context.Background(), config.Storage{
		Driver: driver,
		Path:   filepath.Join(t.TempDir(), "alunos.db"),
	})
	if err != nil {
		t.Fatalf("backend.Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { store.Close() })
	return router.New(store, "alunos", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func mensagem(g *WithT, rec *httptest.ResponseRecorder) string {
	var m map[string]string
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &m)).To(Succeed())
	return m["mensagem"]
}

func TestHealth(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodGet, "/", "")

		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(Equal("API OK"))
		g.Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
	})
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodGet, "/professores", "")

		g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
}

func TestCreateThenGet(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`)
		g.Expect(rec.Code).To(Equal(http.StatusCreated))
		g.Expect(mensagem(g, rec)).To(Equal("Aluno cadastrado com sucesso"))

		rec = do(h, http.MethodGet, "/alunos/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"id":"111","name":"Ana","status":"ativo"}`))

		rec = do(h, http.MethodGet, "/verificar/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"status":"ativo"}`))
	})
}

func TestCreateNullValues(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodPost, "/alunos", `{"id":"111","name":null,"status":7}`)
		g.Expect(rec.Code).To(Equal(http.StatusCreated))

		rec = do(h, http.MethodGet, "/alunos/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"id":"111","name":null,"status":7}`))

		rec = do(h, http.MethodGet, "/verificar/111", "")
		g.Expect(rec.Body.String()).To(MatchJSON(`{"status":7}`))
	})
}

func TestCreateMissingName(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodPost, "/alunos", `{"id":"111","status":"ativo"}`)

		g.Expect(rec.Code).To(Equal(http.StatusBadRequest))
		g.Expect(mensagem(g, rec)).To(Equal("Dados incompletos"))
		g.Expect(do(h, http.MethodGet, "/alunos/111", "").Code).To(Equal(http.StatusNotFound))
	})
}

func TestPartialUpdate(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		g.Expect(do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`).Code).
			To(Equal(http.StatusCreated))

		rec := do(h, http.MethodPut, "/alunos/111", `{"status":"inativo"}`)
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(mensagem(g, rec)).To(Equal("Aluno atualizado com sucesso"))

		rec = do(h, http.MethodGet, "/alunos/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"id":"111","name":"Ana","status":"inativo"}`))
	})
}

// TestUpdateRejectsFieldPaths checks that a field name one store would
// read as a path is refused the same way everywhere.
func TestUpdateRejectsFieldPaths(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`)

		for _, body := range []string{`{"tutor.nome":"Rui"}`, `{"$set":{"x":1}}`, `{"_id":"222"}`} {
			rec := do(h, http.MethodPut, "/alunos/111", body)
			g.Expect(rec.Code).To(Equal(http.StatusInternalServerError), body)
		}

		rec := do(h, http.MethodGet, "/alunos/111", "")
		g.Expect(rec.Body.String()).To(MatchJSON(`{"id":"111","name":"Ana","status":"ativo"}`))
	})
}

func TestDeleteThenGet(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		g.Expect(do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`).Code).
			To(Equal(http.StatusCreated))

		rec := do(h, http.MethodDelete, "/alunos/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(mensagem(g, rec)).To(Equal("Aluno excluído com sucesso"))

		rec = do(h, http.MethodGet, "/alunos/111", "")
		g.Expect(rec.Code).To(Equal(http.StatusNotFound))
		g.Expect(mensagem(g, rec)).To(Equal("Aluno não encontrado"))
	})
}

func TestListAll(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		rec := do(h, http.MethodGet, "/alunos", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`[]`))

		do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`)
		do(h, http.MethodPost, "/alunos", `{"id":"222","name":"Bia","status":"inativo"}`)

		rec = do(h, http.MethodGet, "/alunos", "")
		g.Expect(rec.Code).To(Equal(http.StatusOK))

		var got []types.Document
		g.Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
		g.Expect(got).To(ConsistOf(
			types.Document{"id": "111", "name": "Ana", "status": "ativo"},
			types.Document{"id": "222", "name": "Bia", "status": "inativo"},
		))
	})
}

// TestConcurrentUpdates sends parallel PUTs for one record, each adding
// its own field. Every request must succeed and no merge may be lost.
func TestConcurrentUpdates(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		g.Expect(do(h, http.MethodPost, "/alunos", `{"id":"111","name":"Ana","status":"ativo"}`).Code).
			To(Equal(http.StatusCreated))

		const writers = 50
		codes := make([]int, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				codes[i] = do(h, http.MethodPut, "/alunos/111", fmt.Sprintf(`{"nota%d":%d}`, i, i)).Code
			}()
		}
		wg.Wait()

		for i, code := range codes {
			g.Expect(code).To(Equal(http.StatusOK), "writer %d", i)
		}

		rec := do(h, http.MethodGet, "/alunos/111", "")
		var got types.Document
		g.Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
		g.Expect(got).To(HaveLen(3 + writers))
		g.Expect(got).To(HaveKeyWithValue("nota49", float64(49)))
	})
}

// TestConcurrentCreates sends parallel POSTs for distinct ids.
func TestConcurrentCreates(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		const writers = 50
		codes := make([]int, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				body := fmt.Sprintf(`{"id":"%d","name":"Aluno %d","status":"ativo"}`, i, i)
				codes[i] = do(h, http.MethodPost, "/alunos", body).Code
			}()
		}
		wg.Wait()

		for i, code := range codes {
			g.Expect(code).To(Equal(http.StatusCreated), "writer %d", i)
		}

		var got []types.Document
		g.Expect(json.Unmarshal(do(h, http.MethodGet, "/alunos", "").Body.Bytes(), &got)).To(Succeed())
		g.Expect(got).To(HaveLen(writers))
	})
}

// TestAbsentIDs checks that every id-addressed route answers 404 with its
// fixed message for ids that were never stored.
func TestAbsentIDs(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		// one stored record, so the store is not trivially empty
		do(h, http.MethodPost, "/alunos", `{"id":"x","name":"Ana","status":"ativo"}`)

		rapid.Check(t, func(rt *rapid.T) {
			id := rapid.StringMatching(`[0-9]{1,11}`).Draw(rt, "id")
			g := NewWithT(rt)

			for _, tc := range []struct {
				method, path, body, msg string
			}{
				{http.MethodGet, "/alunos/" + id, "", "Aluno não encontrado"},
				{http.MethodPut, "/alunos/" + id, `{"status":"inativo"}`, "Aluno não encontrado"},
				{http.MethodDelete, "/alunos/" + id, "", "Aluno não encontrado"},
				{http.MethodGet, "/verificar/" + id, "", "CPF não encontrado"},
			} {
				rec := do(h, tc.method, tc.path, tc.body)
				g.Expect(rec.Code).To(Equal(http.StatusNotFound), "%s %s", tc.method, tc.path)
				g.Expect(mensagem(g, rec)).To(Equal(tc.msg))
			}
		})
	})
}

// TestHealthIgnoresStore checks the health route never depends on data.
func TestHealthIgnoresStore(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		rapid.Check(t, func(rt *rapid.T) {
			g := NewWithT(rt)
			id := rapid.StringMatching(`[0-9]{3}`).Draw(rt, "id")
			if rapid.Bool().Draw(rt, "create") {
				do(h, http.MethodPost, "/alunos", `{"id":"`+id+`","name":"Ana","status":"ativo"}`)
			} else {
				do(h, http.MethodDelete, "/alunos/"+id, "")
			}

			rec := do(h, http.MethodGet, "/", "")
			g.Expect(rec.Code).To(Equal(http.StatusOK))
			g.Expect(rec.Body.String()).To(Equal("API OK"))
		})
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()
	eachBackend(t, func(t *testing.T, h http.Handler) {
		g := NewWithT(t)

		req := httptest.NewRequest(http.MethodOptions, "/alunos/111", nil)
		req.Header.Set("Origin", "http://painel.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(BeNumerically("<", 300))
		g.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://painel.example")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})
}
