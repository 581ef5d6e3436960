package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/relvacode/iso8601"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/txlog"
	"github.com/wkalt/lakelet/util/httputil"
	"github.com/wkalt/lakelet/util/log"
)

type QueryResponse struct {
	Version uint64       `json:"version"`
	Rows    []schema.Row `json:"rows"`
}

// newQueryHandler serves table scans. The optional version and asof parameters
// select a historical snapshot; asof accepts an ISO 8601 timestamp.
func newQueryHandler(tables *Tables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		location := r.URL.Query().Get("location")
		if location == "" {
			httputil.BadRequest(ctx, w, "missing location parameter")
			return
		}
		versionParam := r.URL.Query().Get("version")
		asofParam := r.URL.Query().Get("asof")
		if versionParam != "" && asofParam != "" {
			httputil.BadRequest(ctx, w, "version and asof are mutually exclusive")
			return
		}
		log.Infow(ctx, "query request",
			"location", location,
			"version", versionParam,
			"asof", asofParam,
		)
		tbl := tables.Get(location)
		var version uint64
		switch {
		case versionParam != "":
			parsed, err := strconv.ParseUint(versionParam, 10, 64)
			if err != nil {
				httputil.BadRequest(ctx, w, "invalid version parameter: %s", err)
				return
			}
			version = parsed
		case asofParam != "":
			ts, err := iso8601.ParseString(asofParam)
			if err != nil {
				httputil.BadRequest(ctx, w, "invalid asof parameter: %s", err)
				return
			}
			version, err = tbl.VersionAsOf(ctx, ts)
			if err != nil {
				if errors.Is(err, table.TableNotFoundError{}) {
					httputil.NotFound(ctx, w, "table %s not found", location)
					return
				}
				httputil.BadRequest(ctx, w, "error resolving timestamp: %s", err)
				return
			}
		default:
			detail, err := tbl.DescribeDetail(ctx)
			if err != nil {
				if errors.Is(err, table.TableNotFoundError{}) {
					httputil.NotFound(ctx, w, "table %s not found", location)
					return
				}
				httputil.InternalServerError(ctx, w, "error resolving table: %s", err)
				return
			}
			version = detail.Version
		}
		rows, err := tbl.QueryAt(ctx, version)
		if err != nil {
			switch {
			case errors.Is(err, table.TableNotFoundError{}):
				httputil.NotFound(ctx, w, "table %s not found", location)
			case errors.Is(err, txlog.VersionNotFoundError{}):
				httputil.NotFound(ctx, w, "version %d not found", version)
			default:
				httputil.InternalServerError(ctx, w, "error querying table: %s", err)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(QueryResponse{Version: version, Rows: rows}); err != nil {
			httputil.InternalServerError(ctx, w, "error encoding response: %s", err)
			return
		}
	}
}
