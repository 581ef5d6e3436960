package routes

import (
	"sync"

	"github.com/gorilla/mux"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util"
)

/*
The routes package contains the HTTP handlers of the service. Tables are
addressed by their storage location; the Tables cache hands out one engine per
location so snapshot caches survive across requests.
*/

////////////////////////////////////////////////////////////////////////////////

// Tables hands out table engines backed by a shared storage provider.
type Tables struct {
	mu    sync.Mutex
	store storage.Provider
	opts  []table.Option
	cache *util.LRU[string, *table.Table]
}

// NewTables returns a Tables cache over the provider. The options are applied
// to every engine it constructs.
func NewTables(store storage.Provider, opts ...table.Option) *Tables {
	return &Tables{
		store: store,
		opts:  opts,
		cache: util.NewLRU[string, *table.Table](64),
	}
}

// Get returns the engine for a location, constructing it on first use.
func (t *Tables) Get(location string) *table.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tbl, ok := t.cache.Get(location); ok {
		return tbl
	}
	tbl := table.New(t.store, location, t.opts...)
	t.cache.Put(location, tbl)
	return tbl
}

func MakeRoutes(tables *Tables) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tables/create", newCreateHandler(tables)).Methods("POST")
	r.HandleFunc("/tables/insert", newInsertHandler(tables)).Methods("POST")
	r.HandleFunc("/tables/update", newUpdateHandler(tables)).Methods("POST")
	r.HandleFunc("/tables/delete", newDeleteHandler(tables)).Methods("POST")
	r.HandleFunc("/tables/drop", newDropHandler(tables)).Methods("POST")
	r.HandleFunc("/tables/query", newQueryHandler(tables)).Methods("GET")
	r.HandleFunc("/tables/detail", newDetailHandler(tables)).Methods("GET")
	r.HandleFunc("/tables/history", newHistoryHandler(tables)).Methods("GET")
	return r
}
