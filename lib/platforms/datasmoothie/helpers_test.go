package datasmoothie

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"datasmoothie-client/lib/telemetry"

	"github.com/goccy/go-json"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
)

const (
	testHost    = "https://api.test"
	testBaseUrl = testHost + "/api2/"
	testKey     = "secret-key"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestClient returns a client whose transport is served by gock and
// whose clock is frozen at testNow.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, "test:platforms/datasmoothie"))

	c, err := NewClient(ClientOptions{ApiKey: testKey, BaseUrl: testBaseUrl})
	require.NoError(t, err)
	gock.InterceptClient(c.http.GetClient())
	c.now = func() time.Time { return testNow }
	return c
}

func mockApi() *gock.Request {
	return gock.New(testHost).MatchHeader("Authorization", "^Token "+testKey+"$")
}

// captureJSON decodes the request body into out and puts it back for the
// remaining matchers.
func captureJSON(out any) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		if req.Body == nil {
			return false, nil
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		return true, json.Unmarshal(body, out)
	}
}

func requireMocksDone(t *testing.T) {
	t.Helper()
	require.True(t, gock.IsDone(), "pending mocks: %d", len(gock.Pending()))
	require.False(t, gock.HasUnmatchedRequest())
}

const sampleMeta = `{
	"lib": {
		"default text": "en-GB",
		"values": {}
	},
	"columns": {
		"gender": {
			"name": "gender",
			"type": "single",
			"text": {"en-GB": "What is your gender?", "is-IS": "Hvert er kyn þitt?"},
			"values": [
				{"value": 1, "text": {"en-GB": "Male", "is-IS": "Karl"}},
				{"value": 2, "text": {"en-GB": "Female", "is-IS": "Kona"}}
			]
		},
		"q1": {
			"name": "q1",
			"type": "single",
			"text": {"en-GB": "Do you agree?"},
			"values": [
				{"value": 1, "text": {"en-GB": "Agree"}},
				{"value": 2, "text": {"en-GB": "Disagree"}}
			]
		}
	},
	"masks": {}
}`

func mockMetaData(pk string) *gock.Response {
	return mockApi().
		Get("/api2/datasource/" + pk + "/meta_data/$").
		Reply(200).
		BodyString(`{"meta": ` + sampleMeta + `, "data": "gender,q1\n1,1\n2,2\n"}`)
}

func testDatasource(c *Client) *Datasource {
	return newDatasource(c, DatasourceInfo{Pk: 7, Name: "Survey"})
}

func testReport(c *Client, datasource *int64) *Report {
	return newReport(c, ReportMeta{
		Pk:           11,
		Title:        "Weekly",
		GlobalFilter: DefaultGlobalFilter,
		Template:     DefaultTemplate,
		Datasource:   datasource,
	}, []Element{{"i": "1", "type": "text"}})
}
