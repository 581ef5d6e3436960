package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

type InsertRequest struct {
	Location string       `json:"location"`
	Rows     []schema.Row `json:"rows"`
}

func (req InsertRequest) validate() error {
	if req.Location == "" {
		return errors.New("missing location")
	}
	if len(req.Rows) == 0 {
		return errors.New("missing rows")
	}
	return nil
}

type InsertResponse struct {
	Version uint64 `json:"version"`
}

func newInsertHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := InsertRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "insert request",
			"location", req.Location,
			"rows", len(req.Rows),
		)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		version, err := tables.Get(req.Location).Insert(ctx, req.Rows)
		if err != nil {
			switch {
			case errors.Is(err, table.TableNotFoundError{}):
				httputil.NotFound(ctx, w, "table %s not found", req.Location)
			case errors.Is(err, table.ErrConcurrentModification):
				httputil.Conflict(ctx, w, "error inserting rows: %s", err)
			default:
				httputil.InternalServerError(ctx, w, "error inserting rows: %s", err)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(InsertResponse{Version: version}); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding response: %s", err)
			return
		}
	}
}
