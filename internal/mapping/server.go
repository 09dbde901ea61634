package mapping

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhwaniris/permsync/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(r chi.Router) {
	r.Route("/mappings", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{id}", s.get)
		r.Put("/{id}", s.update)
		r.Delete("/{id}", s.delete)
		r.Post("/{id}/apply", s.apply)
	})
}

type saveResponse struct {
	Mapping *Document    `json:"mapping"`
	Result  *ApplyResult `json:"result"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := s.service.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if docs == nil {
		docs = []*Document{}
	}
	cerr.SetJSONResponse(ctx, docs)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	created, result, err := s.service.Create(ctx, &doc)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &saveResponse{Mapping: created, Result: result})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, doc)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	doc.ID = chi.URLParam(r, "id")
	updated, result, err := s.service.Update(ctx, &doc)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &saveResponse{Mapping: updated, Result: result})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"status": "deleted"})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := s.service.Apply(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, result)
}
