package samweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/user"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MakeProjectName builds a unique project name from a dataset
// definition name. The name is <user>_<defname>_<timestamp>, so that
// the stem before the last underscore identifies the submitter and
// dataset across retries.
func (c *Client) MakeProjectName(defname string) string {
	uname := "sam"
	if u, err := user.Current(); err == nil {
		uname = u.Username
	}
	return fmt.Sprintf("%s_%s_%s", uname, defname,
		time.Now().UTC().Format("20060102150405"))
}

// StartProject starts a SAM consumer project on the experiment's
// station.
func (c *Client) StartProject(ctx context.Context, project, defname, station, group, username string) error {
	_, err := c.post(ctx, "start_project", "/startProject", url.Values{
		"name":     {project},
		"station":  {station},
		"defname":  {defname},
		"group":    {group},
		"username": {username},
	})
	return err
}

// ListProjects returns the names of projects on the station, limited
// to those started after startedAfter when it is non-empty.
func (c *Client) ListProjects(ctx context.Context, startedAfter string) ([]string, error) {
	query := url.Values{"format": {"plain"}}
	if startedAfter != "" {
		query.Set("started_after", startedAfter)
	}
	data, err := c.get(ctx, "list_projects", "/projects", query)
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

// FindProject locates a running project and returns its URL.
func (c *Client) FindProject(ctx context.Context, project, station string) (string, error) {
	data, err := c.get(ctx, "find_project", "/findProject", url.Values{
		"name":    {project},
		"station": {station},
	})
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(data))
	if u == "" {
		return "", errors.Errorf("samweb: project %s not found on station %s", project, station)
	}
	return u, nil
}

// ProjectSummary fetches the summary of a project given its URL as
// returned by FindProject.
func (c *Client) ProjectSummary(ctx context.Context, projectURL string) (map[string]interface{}, error) {
	data, err := c.do(ctx, "project_summary", "GET",
		strings.TrimSuffix(projectURL, "/")+"/summary",
		url.Values{"format": {"json"}}, nil)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]interface{})
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.Wrap(err, "samweb: project_summary: bad json")
	}
	return summary, nil
}

// DumpStation returns the station dump, one line per entry. Lines
// mentioning projects look like "Project <name> ...".
func (c *Client) DumpStation(ctx context.Context, station string) ([]string, error) {
	data, err := c.get(ctx, "dump_station", "/dumpStation", url.Values{
		"station": {station},
	})
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}
