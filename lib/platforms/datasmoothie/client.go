package datasmoothie

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"datasmoothie-client/lib/restyutil"
	"datasmoothie-client/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("platforms/datasmoothie")

const (
	DefaultBaseUrl    = "https://www.datasmoothie.com/api2/"
	DefaultMetaMaxAge = 10 * time.Minute
)

type ClientOptions struct {
	ApiKey  string
	BaseUrl string
	// MetaMaxAge is how long fetched survey metadata is used before it is
	// fetched again. Zero selects DefaultMetaMaxAge, a negative value means
	// metadata is refetched on every use.
	MetaMaxAge time.Duration
	// Messages, if set, receives a dump of every request/response pair.
	Messages restyutil.Output
}

// Client talks to the Datasmoothie API on behalf of one api key. It holds
// no state besides its credentials and configuration.
type Client struct {
	BaseUrl    string
	http       *resty.Client
	metaMaxAge time.Duration
	now        func() time.Time
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.ApiKey == "" {
		return nil, invalidOption("an api key is required")
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.MetaMaxAge == 0 {
		opts.MetaMaxAge = DefaultMetaMaxAge
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetHeader("Authorization", fmt.Sprintf("Token %s", opts.ApiKey))
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Content-Type", "application/json")
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	telemetry.InstrumentResty(client, "platforms/datasmoothie/http")
	restyutil.DumpMessages(client, opts.Messages)

	return &Client{
		BaseUrl:    opts.BaseUrl,
		http:       client,
		metaMaxAge: opts.MetaMaxAge,
		now:        time.Now,
	}, nil
}

// Path joins a resource and an optional action into a request path with a
// trailing slash, e.g. ("datasource/3", "tables") -> "/datasource/3/tables/".
func Path(resource, action string) string {
	p := strings.Trim(resource, "/")
	if action = strings.Trim(action, "/"); action != "" {
		p += "/" + action
	}
	return "/" + p + "/"
}

// Response is the status and body of a completed request.
type Response struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (r *Response) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns an *APIError when the response is not a success.
func (r *Response) Err() error {
	if r.Ok() {
		return nil
	}
	return &APIError{
		Method:     r.Method,
		Path:       r.Path,
		StatusCode: r.StatusCode,
		Detail:     errorDetail(r.Body),
		Body:       r.Body,
	}
}

func (r *Response) Decode(out any) error {
	err := json.Unmarshal(r.Body, out)
	if err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &Response{
		Method:     method,
		Path:       path,
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
	}, nil
}

// GetRequest fetches resource/action and decodes the body whatever the
// status code. An invalid api key therefore yields the server's error
// payload, e.g. {"detail": "Invalid token."}, rather than an error.
func (c *Client) GetRequest(ctx context.Context, resource, action string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "client:GetRequest")
	defer span.End()

	res, err := c.do(ctx, http.MethodGet, Path(resource, action), nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	var payload map[string]any
	err = res.Decode(&payload)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		return nil, err
	}
	return payload, nil
}

func (c *Client) PostRequest(ctx context.Context, resource, action string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, Path(resource, action), body)
}

func (c *Client) PutRequest(ctx context.Context, resource, action string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, Path(resource, action), body)
}

func (c *Client) DeleteRequest(ctx context.Context, resource string, primaryKey int64) (*Response, error) {
	return c.do(ctx, http.MethodDelete, Path(resource, fmt.Sprint(primaryKey)), nil)
}

// getJSON is the typed read path: non-success statuses and bodies that
// only carry an authentication error become *APIError.
func (c *Client) getJSON(ctx context.Context, span trace.Span, path string, out any) error {
	span.SetAttributes(attribute.String("custom.path", path))

	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return err
	}
	if err := res.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if detail := errorDetail(res.Body); isTokenDetail(detail) {
		err := &APIError{Method: res.Method, Path: path, StatusCode: res.StatusCode, Detail: detail, Body: res.Body}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = res.Decode(out)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		return err
	}
	return nil
}

// send is the typed write path, the body of a successful response is
// decoded into out when out is not nil.
func (c *Client) send(ctx context.Context, span trace.Span, method, path string, body, out any) error {
	span.SetAttributes(attribute.String("custom.path", path))

	res, err := c.do(ctx, method, path, body)
	if err != nil {
		span.SetStatus(codes.Error, "failed to send")
		return err
	}
	if err := res.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	err = res.Decode(out)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		return err
	}
	return nil
}
