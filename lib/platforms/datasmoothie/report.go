package datasmoothie

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Values sent in place of blank report settings.
const (
	DefaultGlobalFilter = "{}"
	DefaultTemplate     = "default"
)

type ReportMeta struct {
	Pk           int64  `json:"pk,omitempty"`
	Title        string `json:"title"`
	Slug         string `json:"slug,omitempty"`
	Account      int64  `json:"account,omitempty"`
	GlobalFilter string `json:"global_filter"`
	Template     string `json:"template"`
	Datasource   *int64 `json:"datasource"`
}

var reportMetaFields = []string{"title", "slug", "account", "global_filter", "template", "datasource"}

func (m ReportMeta) normalized() ReportMeta {
	if m.GlobalFilter == "" {
		m.GlobalFilter = DefaultGlobalFilter
	}
	if m.Template == "" {
		m.Template = DefaultTemplate
	}
	return m
}

// Report is a remote dashboard. Its element list is a local copy that is
// only replaced after the server has accepted a new list, except for
// charts added with LocalOnly, which mark the report dirty until Sync.
type Report struct {
	Meta     ReportMeta
	client   *Client
	elements []Element
	dirty    bool
	lastId   int64
}

func newReport(c *Client, meta ReportMeta, elements []Element) *Report {
	return &Report{Meta: meta, client: c, elements: elements}
}

func (r *Report) Pk() int64 {
	return r.Meta.Pk
}

// Elements returns a copy of the local element list.
func (r *Report) Elements() []Element {
	return slices.Clone(r.elements)
}

// Dirty reports whether the local element list has changes the server has
// not accepted yet.
func (r *Report) Dirty() bool {
	return r.dirty
}

func (r *Report) metaPath() string {
	return Path(fmt.Sprintf("%s/%d", resourceReport, r.Pk()), "")
}

func (r *Report) elementsPath() string {
	return Path(fmt.Sprintf("%s/%d", resourceReportElement, r.Pk()), "")
}

// GetContent fetches the element list from the server and replaces the
// local copy, discarding unsynced changes.
func (r *Report) GetContent(ctx context.Context) ([]Element, error) {
	ctx, span := tracer.Start(ctx, "report:GetContent")
	defer span.End()

	var out reportElements
	err := r.client.getJSON(ctx, span, r.elementsPath(), &out)
	if err != nil {
		return nil, err
	}
	r.elements = out.Elements
	r.dirty = false
	return r.Elements(), nil
}

// UpdateContent replaces the remote element list. The local list is only
// replaced once the server accepts it.
func (r *Report) UpdateContent(ctx context.Context, elements []Element) error {
	ctx, span := tracer.Start(ctx, "report:UpdateContent")
	defer span.End()
	span.SetAttributes(attribute.Int("custom.elements", len(elements)))

	if elements == nil {
		elements = []Element{}
	}
	err := r.client.send(ctx, span, http.MethodPut, r.elementsPath(), reportElements{
		Elements: elements,
	}, nil)
	if err != nil {
		return err
	}
	r.elements = slices.Clone(elements)
	r.dirty = false
	return nil
}

// Sync pushes the local element list.
func (r *Report) Sync(ctx context.Context) error {
	return r.UpdateContent(ctx, r.elements)
}

// UpdateMeta replaces the report's metadata. Blank global_filter and
// template settings are sent as their defaults.
func (r *Report) UpdateMeta(ctx context.Context, meta ReportMeta) error {
	ctx, span := tracer.Start(ctx, "report:UpdateMeta")
	defer span.End()

	meta = meta.normalized()
	meta.Pk = r.Pk()

	var accepted ReportMeta
	err := r.client.send(ctx, span, http.MethodPut, r.metaPath(), meta, &accepted)
	if err != nil {
		return err
	}
	if accepted.Pk == 0 {
		accepted = meta
	}
	r.Meta = accepted
	return nil
}

// UpdateMetaElement changes a single metadata field, addressed by its json
// name, and pushes the whole record.
func (r *Report) UpdateMetaElement(ctx context.Context, key string, value any) error {
	if !slices.Contains(reportMetaFields, key) {
		return invalidOption("unknown report field %q", key)
	}

	encoded, err := json.Marshal(r.Meta)
	if err != nil {
		return err
	}
	fields := map[string]any{}
	err = json.Unmarshal(encoded, &fields)
	if err != nil {
		return err
	}
	fields[key] = value

	encoded, err = json.Marshal(fields)
	if err != nil {
		return err
	}
	var meta ReportMeta
	err = json.Unmarshal(encoded, &meta)
	if err != nil {
		return invalidOption("report field %q: %v", key, err)
	}
	return r.UpdateMeta(ctx, meta)
}

// Delete removes the report from the server.
func (r *Report) Delete(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "report:Delete")
	defer span.End()

	res, err := r.client.DeleteRequest(ctx, resourceReport, r.Pk())
	if err != nil {
		span.SetStatus(codes.Error, "failed to send")
		return err
	}
	if err := res.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
