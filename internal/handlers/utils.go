package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/sirupsen/logrus"
)

var errBadRequest = &battle.Error{Kind: battle.KindValidation, Code: "bad_request", Message: "bad request payload"}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an engine error kind onto an HTTP status.
func statusFor(err error) int {
	switch battle.KindOf(err) {
	case battle.KindValidation:
		return http.StatusBadRequest
	case battle.KindNotFound:
		return http.StatusNotFound
	case battle.KindRaceLost:
		return http.StatusConflict
	case battle.KindExecution:
		return http.StatusBadGateway
	case battle.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var e *battle.Error
	if errors.As(err, &e) {
		writeJSON(w, status, errorBody{Error: e.Code, Message: e.Message})
		return
	}
	s.Logger.WithFields(logrus.Fields{"path": r.URL.Path, "method": r.Method}).WithError(err).Error("request failed")
	writeJSON(w, status, errorBody{Error: "internal", Message: "internal server error"})
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadRequest.Withf("bad request payload: %v", err)
	}
	return nil
}

func battleIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, battle.ErrBattleNotFound.Withf("invalid battle id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}
