package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/joinpath"
	"github.com/koustreak/dbjoin/internal/schema"
)

const maxBodyBytes = 1 << 20

type healthResponse struct {
	Status string `json:"status"`
	Driver string `json:"driver"`
}

type tablesResponse struct {
	Tables []schema.TableReference `json:"tables"`
}

type joinRequest struct {
	Tables   []string `json:"tables"`
	MaxDepth int      `json:"maxDepth"`
	All      bool     `json:"all"`
}

type joinResponse struct {
	Plans []joinpath.Plan `json:"plans"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Driver: string(s.provider.Driver())})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	refs, err := s.provider.ListTables(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if refs == nil {
		refs = []schema.TableReference{}
	}
	writeJSON(w, http.StatusOK, tablesResponse{Tables: refs})
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	ref := schema.TableReference{
		Schema: chi.URLParam(r, "schema"),
		Table:  chi.URLParam(r, "table"),
	}
	t, err := s.provider.DescribeTable(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err))
		return
	}
	if req.MaxDepth < 0 {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "maxDepth must not be negative"))
		return
	}

	tables := make([]schema.TableReference, 0, len(req.Tables))
	for _, name := range req.Tables {
		ref, err := schema.ParseTableReference(name, s.provider.DefaultSchema())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		tables = append(tables, ref)
	}

	plans, err := s.resolver.Join(r.Context(), joinpath.JoinRequest{
		Tables:   tables,
		MaxDepth: req.MaxDepth,
		All:      req.All,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(plans) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: joinpath.NoPathMessage})
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Plans: plans})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindMalformedSchema:
		return http.StatusUnprocessableEntity
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed, errs.ErrKindQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorWith("request failed", err, map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		})
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
