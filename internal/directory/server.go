package directory

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dhwaniris/permsync/pkg/cerr"
)

const defaultPageLen = 10

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) Register(r chi.Router) {
	r.Get("/users/search", s.search)
}

// search is the autocomplete endpoint for user multiselect fields.
// roles may be passed as a JSON-encoded list or as repeated query params.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	txt := q.Get("txt")
	roles, err := parseRoles(q["roles"])
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid roles filter", err)
		return
	}

	start := 0
	if v := q.Get("start"); v != "" {
		start, err = strconv.Atoi(v)
		if err != nil || start < 0 {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid start", err)
			return
		}
	}
	pageLen := defaultPageLen
	if v := q.Get("page_len"); v != "" {
		pageLen, err = strconv.Atoi(v)
		if err != nil || pageLen <= 0 {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid page_len", err)
			return
		}
	}

	matches, err := s.repo.Search(ctx, txt, roles, start, pageLen)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, matches)
}

func parseRoles(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	// Single value that looks like a JSON array is decoded as one.
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var roles []string
		if err := json.Unmarshal([]byte(values[0]), &roles); err != nil {
			return nil, err
		}
		return roles, nil
	}
	roles := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			roles = append(roles, v)
		}
	}
	return roles, nil
}
