// Package router assembles the route table and middleware into the
// http.Handler served by the binary.
package router

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/alunos-api/internal/http/handlers/health"
	"github.com/aanand-mishra/alunos-api/internal/http/handlers/student"
	"github.com/aanand-mishra/alunos-api/internal/http/middleware"
	"github.com/aanand-mishra/alunos-api/internal/storage"
)

// New returns the application handler. Route table:
//
//	GET    /                health check
//	GET    /verificar/{id}  status of one student
//	POST   /alunos          create (or overwrite) a student
//	GET    /alunos          list all students
//	GET    /alunos/{id}     get one student
//	PUT    /alunos/{id}     merge fields into a student
//	DELETE /alunos/{id}     delete a student
func New(store storage.Storage, collection string, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", health.Check())
	mux.HandleFunc("GET /verificar/{id}", student.Status(store, collection, log))
	mux.HandleFunc("POST /alunos", student.New(store, collection, log))
	mux.HandleFunc("GET /alunos", student.GetList(store, collection, log))
	mux.HandleFunc("GET /alunos/{id}", student.GetByID(store, collection, log))
	mux.HandleFunc("PUT /alunos/{id}", student.Update(store, collection, log))
	mux.HandleFunc("DELETE /alunos/{id}", student.Delete(store, collection, log))

	return middleware.Chain(mux,
		middleware.Logger(log),
		middleware.Recover(log),
		middleware.CORS(),
	)
}
