package datasmoothie

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
)

const (
	resourceDatasource    = "datasource"
	resourceReport        = "report"
	resourceReportElement = "reportElement"
)

type DatasourceInfo struct {
	Pk          int64  `json:"pk"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Created     string `json:"created,omitempty"`
	Modified    string `json:"modified,omitempty"`
}

type DatasourceList struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []DatasourceInfo `json:"results"`
}

type ReportList struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []ReportMeta `json:"results"`
}

// Element is one item of a report: a chart, text block or image. The
// server owns its schema so it is kept as an opaque record.
type Element map[string]any

type reportElements struct {
	Elements []Element `json:"elements"`
}

func (c *Client) ListDatasources(ctx context.Context) (DatasourceList, error) {
	ctx, span := tracer.Start(ctx, "client:ListDatasources")
	defer span.End()

	var out DatasourceList
	err := c.getJSON(ctx, span, Path(resourceDatasource, ""), &out)
	return out, err
}

func (c *Client) GetDatasource(ctx context.Context, pk int64) (*Datasource, error) {
	ctx, span := tracer.Start(ctx, "client:GetDatasource")
	defer span.End()
	span.SetAttributes(attribute.Int64("custom.pk", pk))

	var info DatasourceInfo
	err := c.getJSON(ctx, span, Path(fmt.Sprintf("%s/%d", resourceDatasource, pk), ""), &info)
	if err != nil {
		return nil, err
	}
	if info.Pk == 0 {
		info.Pk = pk
	}
	return newDatasource(c, info), nil
}

func (c *Client) CreateDatasource(ctx context.Context, name, description string) (*Datasource, error) {
	ctx, span := tracer.Start(ctx, "client:CreateDatasource")
	defer span.End()

	if name == "" {
		return nil, invalidOption("a datasource needs a name")
	}
	var info DatasourceInfo
	err := c.send(ctx, span, http.MethodPost, Path(resourceDatasource, ""), map[string]string{
		"name":        name,
		"description": description,
	}, &info)
	if err != nil {
		return nil, err
	}
	return newDatasource(c, info), nil
}

func (c *Client) ListReports(ctx context.Context) (ReportList, error) {
	ctx, span := tracer.Start(ctx, "client:ListReports")
	defer span.End()

	var out ReportList
	err := c.getJSON(ctx, span, Path(resourceReport, ""), &out)
	return out, err
}

func (c *Client) GetReportMeta(ctx context.Context, pk int64) (ReportMeta, error) {
	ctx, span := tracer.Start(ctx, "client:GetReportMeta")
	defer span.End()
	span.SetAttributes(attribute.Int64("custom.pk", pk))

	var meta ReportMeta
	err := c.getJSON(ctx, span, Path(fmt.Sprintf("%s/%d", resourceReport, pk), ""), &meta)
	return meta, err
}

func (c *Client) GetReportElements(ctx context.Context, pk int64) ([]Element, error) {
	ctx, span := tracer.Start(ctx, "client:GetReportElements")
	defer span.End()
	span.SetAttributes(attribute.Int64("custom.pk", pk))

	var out reportElements
	err := c.getJSON(ctx, span, Path(fmt.Sprintf("%s/%d", resourceReportElement, pk), ""), &out)
	return out.Elements, err
}

// GetReport fetches the metadata and the elements of a report.
func (c *Client) GetReport(ctx context.Context, pk int64) (*Report, error) {
	ctx, span := tracer.Start(ctx, "client:GetReport")
	defer span.End()

	meta, err := c.GetReportMeta(ctx, pk)
	if err != nil {
		return nil, err
	}
	if meta.Pk == 0 {
		meta.Pk = pk
	}
	elements, err := c.GetReportElements(ctx, pk)
	if err != nil {
		return nil, err
	}
	return newReport(c, meta, elements), nil
}

func (c *Client) CreateReport(ctx context.Context, title string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "client:CreateReport")
	defer span.End()

	if title == "" {
		return nil, invalidOption("a report needs a title")
	}
	var meta ReportMeta
	err := c.send(ctx, span, http.MethodPost, Path(resourceReport, ""), map[string]string{
		"title": title,
	}, &meta)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		meta.Title = title
	}
	return newReport(c, meta, nil), nil
}
