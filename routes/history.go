package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

func newHistoryHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		location := r.URL.Query().Get("location")
		if location == "" {
			httputil.BadRequest(ctx, w, "missing location parameter")
			return
		}
		log.Infow(ctx, "history request", "location", location)
		history, err := tables.Get(location).DescribeHistory(ctx)
		if err != nil {
			if errors.Is(err, table.TableNotFoundError{}) {
				httputil.NotFound(ctx, w, "table %s not found", location)
				return
			}
			httputil.InternalServerError(ctx, w, "error reading history: %s", err)
			return
		}
		if err := json.NewEncoder(w).Encode(history); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding response: %s", err)
			return
		}
	}
}
