package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

// WhereClause is a single-column row filter.
type WhereClause struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

func (c WhereClause) compile() (table.Predicate, error) {
	if c.Column == "" {
		return table.Predicate{}, errors.New("missing where column")
	}
	op, err := table.ParseCompareOp(c.Op)
	if err != nil {
		return table.Predicate{}, err
	}
	return table.ColumnPredicate(c.Column, op, c.Value), nil
}

// SetClause is a single-column assignment.
type SetClause struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

func compileSetClauses(clauses []SetClause) (table.Transform, error) {
	assignments := make([]table.Assignment, len(clauses))
	for i, c := range clauses {
		if c.Column == "" {
			return table.Transform{}, fmt.Errorf("set clause %d: missing column", i)
		}
		op, err := table.ParseAssignOp(c.Op)
		if err != nil {
			return table.Transform{}, fmt.Errorf("set clause %d: %w", i, err)
		}
		assignments[i] = table.Assignment{Column: c.Column, Op: op, Value: c.Value}
	}
	return table.Assignments(assignments...), nil
}

type UpdateRequest struct {
	Location string      `json:"location"`
	Where    WhereClause `json:"where"`
	Set      []SetClause `json:"set"`
}

func (req UpdateRequest) validate() error {
	if req.Location == "" {
		return errors.New("missing location")
	}
	if len(req.Set) == 0 {
		return errors.New("missing set clauses")
	}
	return nil
}

type UpdateResponse struct {
	Version uint64 `json:"version"`
}

func newUpdateHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := UpdateRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		pred, err := req.Where.compile()
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid where clause: %s", err)
			return
		}
		transform, err := compileSetClauses(req.Set)
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid set clause: %s", err)
			return
		}
		log.Infow(ctx, "update request",
			"location", req.Location,
			"where", pred.Text,
			"set", transform.Text,
		)
		version, err := tables.Get(req.Location).Update(ctx, pred, transform)
		if err != nil {
			switch {
			case errors.Is(err, table.TableNotFoundError{}):
				httputil.NotFound(ctx, w, "table %s not found", req.Location)
			case errors.Is(err, table.ErrConcurrentModification):
				httputil.Conflict(ctx, w, "error updating rows: %s", err)
			default:
				httputil.InternalServerError(ctx, w, "error updating rows: %s", err)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(UpdateResponse{Version: version}); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding response: %s", err)
			return
		}
	}
}
