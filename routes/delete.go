package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

type DeleteRequest struct {
	Location string      `json:"location"`
	Where    WhereClause `json:"where"`
}

func (req DeleteRequest) validate() error {
	if req.Location == "" {
		return errors.New("missing location")
	}
	return nil
}

type DeleteResponse struct {
	Version uint64 `json:"version"`
}

func newDeleteHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := DeleteRequest{}
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
		log.Infow(ctx, "delete request",
			"location", req.Location,
			"where", pred.Text,
		)
		version, err := tables.Get(req.Location).Delete(ctx, pred)
		if err != nil {
			switch {
			case errors.Is(err, table.TableNotFoundError{}):
				httputil.NotFound(ctx, w, "table %s not found", req.Location)
			case errors.Is(err, table.ErrConcurrentModification):
				httputil.Conflict(ctx, w, "error deleting rows: %s", err)
			default:
				httputil.InternalServerError(ctx, w, "error deleting rows: %s", err)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(DeleteResponse{Version: version}); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding response: %s", err)
			return
		}
	}
}
