// Package samweb is a client for the SAM file cataloguing and
// dataset-definition web service. It speaks the plain HTTP+JSON API
// and authenticates with a bearer token.
package samweb

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LArSoft/larbatch/pkg/auth"
	"github.com/LArSoft/larbatch/pkg/util/log"
)

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "samweb_requests_total",
		Help: "Number of SAM web API requests, by operation.",
	},
	[]string{"op"},
)

func init() {
	// Metrics have to be registered to be exposed:
	prometheus.MustRegister(requestCount)
}

// DefaultBaseURL is the conventional SAM endpoint; the experiment
// name is appended to form the API root.
const DefaultBaseURL = "https://samweb.fnal.gov:8483/sam"

// Config carries the connection parameters for a SAM client.
type Config struct {
	BaseURL    string        // service root; DefaultBaseURL if empty
	Experiment string        // experiment (station) name
	Timeout    time.Duration // per-request deadline; 5m if zero
}

// Client talks to one experiment's SAM instance.
type Client struct {
	base       string
	experiment string
	hc         *http.Client
	token      func() (string, error)
}

// New returns a SAM client for the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Experiment == "" {
		return nil, errors.New("samweb: no experiment configured")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	// This dialer is the one from http.DefaultTransport, where it
	// is buried in an anonymous struct.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	hc := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return &Client{
		base:       strings.TrimSuffix(base, "/") + "/" + cfg.Experiment + "/api",
		experiment: cfg.Experiment,
		hc:         hc,
		token:      auth.BearerToken,
	}, nil
}

// Experiment returns the experiment this client is bound to.
func (c *Client) Experiment() string {
	return c.experiment
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, c.base+path, query, nil)
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, c.base+path, nil, form)
}

func (c *Client) do(ctx context.Context, op, method, rawurl string, query, form url.Values) ([]byte, error) {
	requestCount.WithLabelValues(op).Inc()

	if len(query) > 0 {
		rawurl += "?" + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return nil, errors.Wrapf(err, "samweb: %s", op)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if tok, err := c.token(); err == nil && tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else if err != nil {
		log.Debugf("no bearer token for %s: %v", op, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "samweb: %s", op)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "samweb: %s: read response", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("samweb: %s: HTTP %d: %s",
			op, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// ListFiles evaluates a dimension query on the server and returns
// the matching file names.
func (c *Client) ListFiles(ctx context.Context, dims string) ([]string, error) {
	data, err := c.get(ctx, "list_files", "/files/list",
		url.Values{"format": {"plain"}, "dims": {dims}})
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

// CountFiles returns the number of files matching a dimension query.
func (c *Client) CountFiles(ctx context.Context, dims string) (int, error) {
	data, err := c.get(ctx, "count_files", "/files/count",
		url.Values{"dims": {dims}})
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrap(err, "samweb: count_files: bad count")
	}
	return n, nil
}

// DescDefinition returns the full description of a dataset
// definition as a string map.
func (c *Client) DescDefinition(ctx context.Context, defname string) (map[string]interface{}, error) {
	data, err := c.get(ctx, "desc_definition",
		"/definitions/name/"+url.PathEscape(defname)+"/describe",
		url.Values{"format": {"json"}})
	if err != nil {
		return nil, err
	}
	desc := make(map[string]interface{})
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(err, "samweb: desc_definition: bad json")
	}
	return desc, nil
}

// DescDefinitionDims returns the dimension string stored for a
// dataset definition.
func (c *Client) DescDefinitionDims(ctx context.Context, defname string) (string, error) {
	desc, err := c.DescDefinition(ctx, defname)
	if err != nil {
		return "", err
	}
	dims, ok := desc["dimensions"].(string)
	if !ok {
		return "", errors.Errorf("samweb: definition %s has no dimensions", defname)
	}
	return dims, nil
}

// CreateDefinition creates a new dataset definition.
func (c *Client) CreateDefinition(ctx context.Context, defname, dims, user, group string) error {
	_, err := c.post(ctx, "create_definition", "/definitions/create", url.Values{
		"defname": {defname},
		"dims":    {dims},
		"user":    {user},
		"group":   {group},
	})
	return err
}

// DeleteDefinition deletes a dataset definition.
func (c *Client) DeleteDefinition(ctx context.Context, defname string) error {
	_, err := c.post(ctx, "delete_definition",
		"/definitions/name/"+url.PathEscape(defname)+"/delete", url.Values{})
	return err
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
