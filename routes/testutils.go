package routes

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/wkalt/lakelet/storage"
)

func MakeTestRoutes(ctx context.Context, t *testing.T, store storage.Provider) (string, func()) {
	t.Helper()
	handler := MakeRoutes(NewTables(store))
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close
}
