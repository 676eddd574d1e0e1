package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"datasmoothie-client/lib/platforms/datasmoothie"
	"datasmoothie-client/lib/surveycache"
	"datasmoothie-client/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func parsePk(arg string) int64 {
	pk, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		serviceutil.Fatal("invalid primary key", err)
	}
	return pk
}

// splitList turns "a,b, c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitGroups(values []string) [][]string {
	groups := make([][]string, 0, len(values))
	for _, v := range values {
		if group := splitList(v); len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func openCache() *surveycache.Store {
	if cache != nil || config.CacheDir == "" {
		return cache
	}
	store, err := surveycache.Open(config.CacheDir, config.cacheTtl())
	if err != nil {
		slog.Warn("survey cache unavailable", "dir", config.CacheDir, "err", err)
		return nil
	}
	cache = store
	return cache
}

// loadDatasource fetches the datasource and seeds its metadata from the
// on-disk cache when there is one.
func loadDatasource(ctx context.Context, pk int64) *datasmoothie.Datasource {
	ds, err := client.GetDatasource(ctx, pk)
	if err != nil {
		serviceutil.Fatal("failed to get datasource", err)
	}

	store := openCache()
	if store == nil {
		return ds
	}
	entry, err := store.Get(ctx, surveycache.Key(client.BaseUrl, pk))
	if errors.Is(err, surveycache.ErrNotFound) {
		return ds
	}
	if err != nil {
		slog.Warn("failed to read survey cache", "datasource", pk, "err", err)
		return ds
	}
	ds.SetCache(datasmoothie.SurveyCache{
		Meta:      entry.Meta,
		Data:      entry.Data,
		FetchedAt: entry.FetchedAt,
	})
	return ds
}

// saveDatasource writes the datasource's current metadata back to the
// on-disk cache.
func saveDatasource(ctx context.Context, ds *datasmoothie.Datasource) {
	store := openCache()
	if store == nil {
		return
	}
	cached, ok := ds.Cached()
	if !ok {
		return
	}
	err := store.Set(ctx, surveycache.Key(client.BaseUrl, ds.Pk()), surveycache.Entry{
		Meta:      cached.Meta,
		Data:      cached.Data,
		FetchedAt: cached.FetchedAt,
	})
	if err != nil {
		slog.Warn("failed to write survey cache", "datasource", ds.Pk(), "err", err)
	}
}

// forgetDatasource drops the cached metadata of the datasource so the next
// load fetches it from the API.
func forgetDatasource(ctx context.Context, pk int64) {
	store := openCache()
	if store == nil {
		return
	}
	err := store.Delete(ctx, surveycache.Key(client.BaseUrl, pk))
	if err != nil {
		slog.Warn("failed to clear survey cache", "datasource", pk, "err", err)
	}
}
