// Package student contains the HTTP handlers for the student resource.
//
// HANDLER PATTERN — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────
// The router expects func(http.ResponseWriter, *http.Request), which has
// no room for a database. Each factory below receives its dependencies
// once at start-up and returns a closure the router calls on every
// request:
//
//	router.HandleFunc("POST /alunos", student.New(store, "alunos", log))
//	//                                ^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
//	//                   called ONCE at start-up; the returned func is
//	//                   called on EVERY matching request.
//
// ERROR TIERS:
// ────────────
//
//	404  {"mensagem": "..."}          record absent
//	400  {"mensagem": "Dados ..."}    create body lacks id or name
//	500  plain-text error page        everything else
//
// A handler does at most one existence check and one store call. The
// check and the write are separate round trips; there is no atomic
// check-and-set.
package student

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/types"
	"github.com/aanand-mishra/alunos-api/internal/utils/response"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /alunos.
// Creates (or overwrites) the student keyed by the body's "id".
//
// Request body (JSON):
//
//	{ "id": "111", "name": "Ana", "status": "ativo" }
//
// Only the presence of the three keys is checked. Their values are
// stored as sent, so "name": null or "status": 5 are accepted.
//
// Responses:
//
//	201 Created   — {"mensagem": "Aluno adicionado com sucesso"}
//	400           — "id" or "name" key absent
//	500           — "status" absent, id not a string, malformed body,
//	                store failure
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("creating a student")

		// ── Step 1: Decode the body as a free-form document ──────────
		// Decoding into a map (not a struct) keeps "absent" and "null"
		// apart: a null value is a present key holding nil.
		var body types.Document
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			internalError(w, log, "cannot decode student", err)
			return
		}

		// ── Step 2: Check the required keys ──────────────────────────
		id, doc, err := types.NewStudent(body)
		if errors.Is(err, types.ErrIncomplete) {
			log.Info("incomplete student", slog.String("error", err.Error()))
			response.WriteMessage(w, http.StatusBadRequest, response.MsgIncomplete)
			return
		}
		if err != nil {
			internalError(w, log, "cannot create student", err)
			return
		}

		// ── Step 3: Store it, replacing any record with the same id ──
		if err := store.Set(r.Context(), collection, id, doc); err != nil {
			internalError(w, log, "error creating student", err, slog.String("id", id))
			return
		}

		log.Info("student created", slog.String("id", id))
		response.WriteMessage(w, http.StatusCreated, response.MsgCreated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /alunos/{id}.
// Returns the stored document exactly as kept, every field included.
//
//	200 OK        — the document
//	404 Not Found — {"mensagem": "Aluno não encontrado"}
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.PathValue reads the {id} wildcard of the route pattern.
		id := r.PathValue("id")
		log.Info("getting a student", slog.String("id", id))

		doc, err := store.Get(r.Context(), collection, id)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteMessage(w, http.StatusNotFound, response.MsgStudentNotFound)
			return
		}
		if err != nil {
			internalError(w, log, "error getting student", err, slog.String("id", id))
			return
		}

		response.WriteJSON(w, http.StatusOK, doc)
	}
}

// GetList handles GET /alunos. An empty collection yields [].
func GetList(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("getting all students")

		docs, err := store.List(r.Context(), collection)
		if err != nil {
			internalError(w, log, "error getting students", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, docs)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /alunos/{id}.
// Merges the body's fields into the stored document.
//
// Request body: any JSON object, e.g.
//
//	{ "status": "inativo", "turma": "3A" }
//
// Fields not in the body are kept. "id" is the document key and is never
// overwritten.
//
//	200 OK        — {"mensagem": "Aluno atualizado com sucesso"}
//	404 Not Found — no record under {id}
//	500           — malformed body, field name the store cannot keep,
//	                store failure
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Info("updating a student", slog.String("id", id))

		// ── Step 1: Decode the partial document ──────────────────────
		var fields types.Document
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			internalError(w, log, "cannot decode update", err, slog.String("id", id))
			return
		}
		delete(fields, types.FieldID)

		// ── Step 2: 404 before touching anything ─────────────────────
		if !exists(w, r, store, collection, id, log) {
			return
		}

		// ── Step 3: Merge ────────────────────────────────────────────
		err := store.Update(r.Context(), collection, id, fields)
		if errors.Is(err, storage.ErrNotFound) {
			// deleted between the check and the update
			response.WriteMessage(w, http.StatusNotFound, response.MsgStudentNotFound)
			return
		}
		if err != nil {
			internalError(w, log, "error updating student", err, slog.String("id", id))
			return
		}

		log.Info("student updated", slog.String("id", id))
		response.WriteMessage(w, http.StatusOK, response.MsgUpdated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /alunos/{id}.
//
//	200 OK        — {"mensagem": "Aluno excluído com sucesso"}
//	404 Not Found — no record under {id}
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Info("deleting a student", slog.String("id", id))

		if !exists(w, r, store, collection, id, log) {
			return
		}

		if err := store.Delete(r.Context(), collection, id); err != nil {
			internalError(w, log, "error deleting student", err, slog.String("id", id))
			return
		}

		log.Info("student deleted", slog.String("id", id))
		response.WriteMessage(w, http.StatusOK, response.MsgDeleted)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Status handles GET /verificar/{id}.
// Answers only the status field of the record:
//
//	200 OK        — {"status": "ativo"}  (null when the field is absent)
//	404 Not Found — {"mensagem": "CPF não encontrado"}
//
// ─────────────────────────────────────────────────────────────────────────────
func Status(store storage.Storage, collection string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Info("checking student status", slog.String("id", id))

		doc, err := store.Get(r.Context(), collection, id)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteMessage(w, http.StatusNotFound, response.MsgCPFNotFound)
			return
		}
		if err != nil {
			internalError(w, log, "error checking status", err, slog.String("id", id))
			return
		}

		// A missing key reads as nil, which encodes as null.
		response.WriteJSON(w, http.StatusOK, map[string]any{
			types.FieldStatus: doc[types.FieldStatus],
		})
	}
}

// exists reports whether id is stored. When it is not, the 404 (or the
// 500 for a failed lookup) has already been written.
func exists(w http.ResponseWriter, r *http.Request, store storage.Storage, collection, id string, log *slog.Logger) bool {
	_, err := store.Get(r.Context(), collection, id)
	if errors.Is(err, storage.ErrNotFound) {
		response.WriteMessage(w, http.StatusNotFound, response.MsgStudentNotFound)
		return false
	}
	if err != nil {
		internalError(w, log, "error looking up student", err, slog.String("id", id))
		return false
	}
	return true
}

// internalError logs err and answers the bare 500 page. The client never
// sees err.
func internalError(w http.ResponseWriter, log *slog.Logger, msg string, err error, attrs ...any) {
	log.Error(msg, append(attrs, slog.String("error", err.Error()))...)
	response.InternalError(w)
}
