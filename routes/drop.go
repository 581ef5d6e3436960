package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

type DropRequest struct {
	Location string `json:"location"`
}

func newDropHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := DropRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		if req.Location == "" {
			httputil.BadRequest(ctx, w, "invalid request: %s", errors.New("missing location"))
			return
		}
		log.Infow(ctx, "drop table request", "location", req.Location)
		if err := tables.Get(req.Location).Drop(ctx); err != nil {
			httputil.InternalServerError(ctx, w, "error dropping table: %s", err)
			return
		}
	}
}
