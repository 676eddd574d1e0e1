package datasmoothie

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"datasmoothie-client/lib/crosstab"
	"datasmoothie-client/lib/surveymeta"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SurveyCache is the locally held copy of a datasource's metadata and
// response data as of FetchedAt.
type SurveyCache struct {
	Meta      surveymeta.Meta
	Data      string
	FetchedAt time.Time
}

func (s SurveyCache) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Datasource is one remote survey dataset.
type Datasource struct {
	Info   DatasourceInfo
	client *Client
	cache  *SurveyCache
}

func newDatasource(c *Client, info DatasourceInfo) *Datasource {
	return &Datasource{Info: info, client: c}
}

func (d *Datasource) Pk() int64 {
	return d.Info.Pk
}

func (d *Datasource) Name() string {
	return d.Info.Name
}

func (d *Datasource) resource() string {
	return fmt.Sprintf("%s/%d", resourceDatasource, d.Info.Pk)
}

// Cached returns the cached metadata and data, if any has been fetched or
// set. It is never refreshed implicitly.
func (d *Datasource) Cached() (SurveyCache, bool) {
	if d.cache == nil {
		return SurveyCache{}, false
	}
	return *d.cache, true
}

// SetCache seeds the cache, e.g. from a persistent store.
func (d *Datasource) SetCache(cache SurveyCache) {
	d.cache = &cache
}

// Invalidate drops the cache so the next metadata lookup refetches.
func (d *Datasource) Invalidate() {
	d.cache = nil
}

type metaAndData struct {
	Meta surveymeta.Meta `json:"meta"`
	Data string          `json:"data"`
}

// GetMetaAndData fetches the Quantipy metadata and the csv response data
// and replaces the cache with them.
func (d *Datasource) GetMetaAndData(ctx context.Context) (SurveyCache, error) {
	ctx, span := tracer.Start(ctx, "datasource:GetMetaAndData")
	defer span.End()
	span.SetAttributes(attribute.Int64("custom.pk", d.Pk()))

	var payload metaAndData
	err := d.client.getJSON(ctx, span, Path(d.resource(), "meta_data"), &payload)
	if err != nil {
		return SurveyCache{}, err
	}

	d.cache = &SurveyCache{
		Meta:      payload.Meta,
		Data:      payload.Data,
		FetchedAt: d.client.now(),
	}
	return *d.cache, nil
}

// Refresh is GetMetaAndData.
func (d *Datasource) Refresh(ctx context.Context) (SurveyCache, error) {
	return d.GetMetaAndData(ctx)
}

// Meta returns the survey metadata, fetching it when there is no cache or
// the cache is older than the client's MetaMaxAge.
func (d *Datasource) Meta(ctx context.Context) (surveymeta.Meta, error) {
	if d.cache != nil && d.cache.Age(d.client.now()) < d.client.metaMaxAge {
		return d.cache.Meta, nil
	}
	cache, err := d.GetMetaAndData(ctx)
	if err != nil {
		return surveymeta.Meta{}, err
	}
	return cache.Meta, nil
}

// UpdateMetaAndData replaces the remote metadata and data. The response is
// returned as is; callers check Response.Ok or Response.Err. A successful
// update drops the local cache.
func (d *Datasource) UpdateMetaAndData(ctx context.Context, meta any, data string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "datasource:UpdateMetaAndData")
	defer span.End()

	res, err := d.client.PostRequest(ctx, d.resource(), "meta_data", map[string]any{
		"meta": meta,
		"data": data,
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to send")
		return nil, err
	}
	if !res.Ok() {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.StatusCode))
		return res, nil
	}
	d.Invalidate()
	return res, nil
}

// TablesRequest selects the statistics computed over every row variable
// in Stub crossed with every column variable in Banner.
type TablesRequest struct {
	Stub   []string `json:"stub"`
	Banner []string `json:"banner"`
	Views  []string `json:"views"`
	Filter any      `json:"filter,omitempty"`
	Weight string   `json:"weight,omitempty"`

	// Combine folds all views into one labeled table.
	Combine bool `json:"-"`
	// Language selects the label language, empty means the metadata default.
	Language string `json:"-"`
}

var DefaultViews = []string{crosstab.ViewCounts, crosstab.ViewPercent}

func (r *TablesRequest) normalize() error {
	if len(r.Stub) == 0 {
		return invalidOption("tables need at least one stub variable")
	}
	if len(r.Banner) == 0 {
		r.Banner = []string{"@"}
	}
	if len(r.Views) == 0 {
		r.Views = DefaultViews
	}
	return nil
}

type TablesResult struct {
	// Views holds the post-processed, unlabeled table of every view the
	// server returned.
	Views map[string]*crosstab.Table
	// Order lists the keys of Views in request order.
	Order []string
	// Missing lists requested views the response did not contain.
	Missing []string
	// Combined is set when the request asked for combination.
	Combined *crosstab.Table
}

type tablesPayload struct {
	Results map[string]json.RawMessage `json:"results"`
}

func (d *Datasource) postTables(ctx context.Context, action string, body any) (tablesPayload, error) {
	ctx, span := tracer.Start(ctx, "datasource:post:"+action)
	defer span.End()

	var payload tablesPayload
	err := d.client.send(ctx, span, http.MethodPost, Path(d.resource(), action), body, &payload)
	return payload, err
}

// GetTables requests one table per view. Views absent from the response
// are listed in TablesResult.Missing instead of failing the request.
func (d *Datasource) GetTables(ctx context.Context, req TablesRequest) (TablesResult, error) {
	ctx, span := tracer.Start(ctx, "datasource:GetTables")
	defer span.End()

	if err := req.normalize(); err != nil {
		return TablesResult{}, err
	}

	payload, err := d.postTables(ctx, "tables", req)
	if err != nil {
		return TablesResult{}, err
	}

	result := TablesResult{Views: map[string]*crosstab.Table{}}
	for _, view := range req.Views {
		raw, ok := payload.Results[view]
		if !ok {
			result.Missing = append(result.Missing, view)
			continue
		}
		table, err := crosstab.Decode(raw)
		if err != nil {
			span.SetStatus(codes.Error, "failed to decode view")
			return TablesResult{}, fmt.Errorf("view %q: %w", view, err)
		}
		result.Views[view] = crosstab.PostProcess(view, table)
		result.Order = append(result.Order, view)
	}
	if len(result.Missing) > 0 {
		slog.WarnContext(ctx, "views missing from tables response", "datasource", d.Pk(), "missing", result.Missing)
	}

	if !req.Combine {
		return result, nil
	}

	combined, err := crosstab.Combine(result.Views, result.Order)
	if err != nil {
		span.SetStatus(codes.Error, "failed to combine views")
		return result, fmt.Errorf("%w (missing views: %v)", err, result.Missing)
	}
	meta, err := d.Meta(ctx)
	if err != nil {
		return result, err
	}
	result.Combined = combined.Relabel(meta.In(req.Language))
	return result, nil
}

func (d *Datasource) singleView(ctx context.Context, action, view, language string, body any) (*crosstab.Table, error) {
	payload, err := d.postTables(ctx, action, body)
	if err != nil {
		return nil, err
	}

	raw, ok := payload.Results[view]
	if !ok {
		return nil, fmt.Errorf("%s: view %q missing from response", action, view)
	}
	table, err := crosstab.Decode(raw)
	if err != nil {
		return nil, err
	}

	meta, err := d.Meta(ctx)
	if err != nil {
		return nil, err
	}
	return crosstab.PostProcess(view, table).Relabel(meta.In(language)), nil
}

type TableRequest struct {
	Stub     []string `json:"stub"`
	Banner   []string `json:"banner"`
	View     string   `json:"view"`
	Filter   any      `json:"filter,omitempty"`
	Weight   string   `json:"weight,omitempty"`
	Language string   `json:"-"`
}

// GetTable requests a single statistic and returns it labeled. A response
// that is not a success is returned as an *APIError carrying the status
// code and body.
func (d *Datasource) GetTable(ctx context.Context, req TableRequest) (*crosstab.Table, error) {
	ctx, span := tracer.Start(ctx, "datasource:GetTable")
	defer span.End()

	if len(req.Stub) == 0 {
		return nil, invalidOption("a table needs at least one stub variable")
	}
	if len(req.Banner) == 0 {
		req.Banner = []string{"@"}
	}
	if req.View == "" {
		req.View = crosstab.ViewCounts
	}
	return d.singleView(ctx, "table", req.View, req.Language, req)
}

type CrosstabRequest struct {
	X        string `json:"x"`
	Y        string `json:"y"`
	View     string `json:"view"`
	Filter   any    `json:"filter,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Language string `json:"-"`
}

// GetCrosstab crosses a single row variable with a single column
// variable. Failures are reported the same way as GetTable.
func (d *Datasource) GetCrosstab(ctx context.Context, req CrosstabRequest) (*crosstab.Table, error) {
	ctx, span := tracer.Start(ctx, "datasource:GetCrosstab")
	defer span.End()

	if req.X == "" {
		return nil, invalidOption("a crosstab needs an x variable")
	}
	if req.Y == "" {
		req.Y = "@"
	}
	if req.View == "" {
		req.View = crosstab.ViewCounts
	}
	return d.singleView(ctx, "crosstab", req.View, req.Language, req)
}

// GetTableSet computes a combined table for every (stub, banner) pair,
// stubs in the outer loop.
func (d *Datasource) GetTableSet(ctx context.Context, stubs, banners [][]string, views []string, language string) ([]*crosstab.Table, error) {
	ctx, span := tracer.Start(ctx, "datasource:GetTableSet")
	defer span.End()
	span.SetAttributes(
		attribute.Int("custom.stubs", len(stubs)),
		attribute.Int("custom.banners", len(banners)),
	)

	tables := make([]*crosstab.Table, 0, len(stubs)*len(banners))
	for _, stub := range stubs {
		for _, banner := range banners {
			result, err := d.GetTables(ctx, TablesRequest{
				Stub:     stub,
				Banner:   banner,
				Views:    views,
				Combine:  true,
				Language: language,
			})
			if err != nil {
				return nil, fmt.Errorf("table set %v x %v: %w", stub, banner, err)
			}
			tables = append(tables, result.Combined)
		}
	}
	return tables, nil
}

// TableSetToExcel writes every table to its own worksheet.
func (d *Datasource) TableSetToExcel(tables []*crosstab.Table, filename string) error {
	return crosstab.WriteExcel(tables, filename)
}
