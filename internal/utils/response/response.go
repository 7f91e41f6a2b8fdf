// Package response provides helpers for writing consistent HTTP responses.
//
// Every JSON reply that is not a document carries a single "mensagem"
// field; faults that are not handled are answered with a bare 500.
package response

import (
	"encoding/json"
	"net/http"
)

// Message is the envelope for informational and error replies:
//
//	{ "mensagem": "Aluno não encontrado" }
type Message struct {
	Mensagem string `json:"mensagem"`
}

// Fixed client-facing messages. Existing clients match on these strings.
const (
	MsgCPFNotFound     = "CPF não encontrado"
	MsgStudentNotFound = "Aluno não encontrado"
	MsgIncomplete      = "Dados incompletos"
	MsgCreated         = "Aluno cadastrado com sucesso"
	MsgUpdated         = "Aluno atualizado com sucesso"
	MsgDeleted         = "Aluno excluído com sucesso"
)

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// Order matters: Header() → WriteHeader() → body writes.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteMessage writes {"mensagem": msg} with the given status.
func WriteMessage(w http.ResponseWriter, status int, msg string) error {
	return WriteJSON(w, status, Message{Mensagem: msg})
}

// WriteText writes a plain-text body.
func WriteText(w http.ResponseWriter, status int, body string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	return err
}

// InternalError answers an unhandled fault: status 500 and no JSON body.
func InternalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError),
		http.StatusInternalServerError)
}
