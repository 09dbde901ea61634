package grant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhwaniris/permsync/pkg/cerr"
)

// Server exposes the read side of the grant table for the enforcement
// layer and for debugging. Mutation happens only through reconciliation.
type Server struct {
	repo  Repository
	cache *Cache
}

func NewServer(repo Repository, cache *Cache) *Server {
	return &Server{repo: repo, cache: cache}
}

func (s *Server) Register(r chi.Router) {
	r.Get("/grants", s.list)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := r.URL.Query().Get("user")
	if user == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "user is required", nil)
		return
	}

	if grants, ok := s.cache.Get(user); ok {
		cerr.SetJSONResponse(ctx, grants)
		return
	}

	grants, err := s.repo.List(ctx, Filter{User: user})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if grants == nil {
		grants = []*Grant{}
	}
	s.cache.Put(user, grants)
	cerr.SetJSONResponse(ctx, grants)
}
