package datasmoothie

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strconv"

	"dario.cat/mergo"
	"github.com/goccy/go-json"
	"github.com/titanous/json5"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed chart_template.json5
var chartTemplate []byte

type DatasourceSelection struct {
	X []string `json:"x"`
	Y []string `json:"y"`
}

type ChartSettings struct {
	ChartType   string                         `json:"chartType"`
	Title       string                         `json:"title"`
	ShowTitle   bool                           `json:"showTitle"`
	ShowLegend  bool                           `json:"showLegend"`
	Height      int                            `json:"height"`
	X           []string                       `json:"x"`
	Y           []string                       `json:"y"`
	Views       []string                       `json:"views"`
	Datasources map[string]DatasourceSelection `json:"datasources"`
	Filters     []map[string]any               `json:"filters"`
	Compare     []string                       `json:"compare"`
	Weight      string                         `json:"weight"`
}

type ChartElement struct {
	I        string        `json:"i"`
	Position int           `json:"position"`
	Type     string        `json:"type"`
	SameLine bool          `json:"sameLine"`
	Options  ChartSettings `json:"options"`
}

func loadChartTemplate() (ChartElement, error) {
	var chart ChartElement
	err := json5.Unmarshal(chartTemplate, &chart)
	if err != nil {
		return ChartElement{}, fmt.Errorf("load chart template: %w", err)
	}
	return chart, nil
}

func (c ChartElement) element() (Element, error) {
	encoded, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var el Element
	err = json.Unmarshal(encoded, &el)
	return el, err
}

type ChartOptions struct {
	Datasource *Datasource `validate:"required"`
	// X holds the variables on the x axis, Y defaults to the total "@".
	X []string `validate:"required,min=1,dive,required"`
	Y []string `validate:"dive,required"`
	// ChartType defaults to the template's "bar".
	ChartType string
	Views     []string
	Filters   []map[string]any
	Compare   []string
	Weight    string
	// Title wins over the title derived from the x variable's text.
	Title string
	// Language of the derived title, empty selects the metadata default.
	Language string
	SameLine bool
	// LocalOnly appends the chart without pushing the element list; the
	// report stays dirty until Sync.
	LocalOnly bool
}

func (o ChartOptions) validate() error {
	if err := validateStruct(o); err != nil {
		return err
	}
	if o.Datasource.Pk() <= 0 {
		return invalidOption("chart datasource has no primary key")
	}
	return nil
}

// linkDatasource makes the report reference ds when it has no datasource
// yet. The link is persisted right away.
func (r *Report) linkDatasource(ctx context.Context, ds *Datasource) error {
	if r.Meta.Datasource != nil {
		return nil
	}
	return r.UpdateMetaElement(ctx, "datasource", ds.Pk())
}

// nextId returns a millisecond timestamp id that is unique within the
// report even when several charts are built in the same millisecond.
func (r *Report) nextId() string {
	id := r.client.now().UnixMilli()
	if id <= r.lastId {
		id = r.lastId + 1
	}
	r.lastId = id
	return strconv.FormatInt(id, 10)
}

func (r *Report) chartTitle(ctx context.Context, opts ChartOptions) (string, error) {
	if opts.Title != "" {
		return opts.Title, nil
	}
	if len(opts.X) != 1 {
		return "", nil
	}
	meta, err := opts.Datasource.Meta(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve chart title: %w", err)
	}
	return meta.VariableText(opts.X[0], opts.Language), nil
}

func (r *Report) buildChart(ctx context.Context, opts ChartOptions, position int) (Element, error) {
	chart, err := loadChartTemplate()
	if err != nil {
		return nil, err
	}
	title, err := r.chartTitle(ctx, opts)
	if err != nil {
		return nil, err
	}

	y := opts.Y
	if len(y) == 0 {
		y = chart.Options.Y
	}
	patch := ChartElement{
		I:        r.nextId(),
		Position: position,
		Type:     "chart",
		SameLine: opts.SameLine,
		Options: ChartSettings{
			ChartType: opts.ChartType,
			Title:     title,
			X:         slices.Clone(opts.X),
			Y:         slices.Clone(y),
			Views:     opts.Views,
			Datasources: map[string]DatasourceSelection{
				strconv.FormatInt(opts.Datasource.Pk(), 10): {
					X: slices.Clone(opts.X),
					Y: slices.Clone(y),
				},
			},
			Filters: opts.Filters,
			Compare: opts.Compare,
			Weight:  opts.Weight,
		},
	}
	err = mergo.Merge(&chart, patch, mergo.WithOverride)
	if err != nil {
		return nil, fmt.Errorf("patch chart template: %w", err)
	}
	return chart.element()
}

// AddChart builds a chart from the template and appends it to the report.
// Unless opts.LocalOnly is set, the extended element list is pushed and
// the local list only changes once the server accepts it.
func (r *Report) AddChart(ctx context.Context, opts ChartOptions) (Element, error) {
	ctx, span := tracer.Start(ctx, "report:AddChart")
	defer span.End()

	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := r.linkDatasource(ctx, opts.Datasource); err != nil {
		return nil, err
	}
	chart, err := r.buildChart(ctx, opts, len(r.elements))
	if err != nil {
		return nil, err
	}

	if opts.LocalOnly {
		r.elements = append(r.elements, chart)
		r.dirty = true
		return chart, nil
	}
	next := append(slices.Clone(r.elements), chart)
	err = r.UpdateContent(ctx, next)
	if err != nil {
		return nil, err
	}
	return chart, nil
}

// AddCharts adds every chart with a single push of the element list. With
// perRow > 1 every chart except the first of each row is placed on the
// same line as the one before it. LocalOnly and SameLine of the
// individual options are ignored.
func (r *Report) AddCharts(ctx context.Context, charts []ChartOptions, perRow int) ([]Element, error) {
	ctx, span := tracer.Start(ctx, "report:AddCharts")
	defer span.End()
	span.SetAttributes(attribute.Int("custom.charts", len(charts)))

	if len(charts) == 0 {
		return nil, nil
	}
	for i, opts := range charts {
		if err := opts.validate(); err != nil {
			return nil, fmt.Errorf("chart %d: %w", i, err)
		}
	}
	for _, opts := range charts {
		if err := r.linkDatasource(ctx, opts.Datasource); err != nil {
			return nil, err
		}
	}

	next := slices.Clone(r.elements)
	added := make([]Element, 0, len(charts))
	for i, opts := range charts {
		opts.SameLine = perRow > 1 && i%perRow != 0
		chart, err := r.buildChart(ctx, opts, len(next))
		if err != nil {
			return nil, fmt.Errorf("chart %d: %w", i, err)
		}
		next = append(next, chart)
		added = append(added, chart)
	}

	err := r.UpdateContent(ctx, next)
	if err != nil {
		return nil, err
	}
	return added, nil
}
