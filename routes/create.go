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

type CreateRequest struct {
	Location string        `json:"location"`
	Schema   schema.Schema `json:"schema"`
}

func (req CreateRequest) validate() error {
	if req.Location == "" {
		return errors.New("missing location")
	}
	return req.Schema.Validate()
}

func newCreateHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := CreateRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "create table request",
			"location", req.Location,
			"schema", req.Schema.String(),
		)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		if err := tables.Get(req.Location).Create(ctx, &req.Schema); err != nil {
			if errors.Is(err, table.TableExistsError{}) {
				httputil.Conflict(ctx, w, "table %s already exists", req.Location)
				return
			}
			httputil.InternalServerError(ctx, w, "error creating table: %s", err)
			return
		}
	}
}
