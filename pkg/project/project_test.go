package project

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LArSoft/larbatch/pkg/dimension"
)

// fakeSAM is an in-memory stand-in for the SAM web service.
type fakeSAM struct {
	experiment  string
	dims        map[string][]string
	defs        map[string]string
	started     map[string]string // project -> defname
	projects    []string
	stationDump []string
	summaries   map[string]map[string]interface{}
}

func newFakeSAM() *fakeSAM {
	return &fakeSAM{
		experiment: "uboone",
		dims:       make(map[string][]string),
		defs:       make(map[string]string),
		started:    make(map[string]string),
		summaries:  make(map[string]map[string]interface{}),
	}
}

func (f *fakeSAM) Experiment() string { return f.experiment }

func (f *fakeSAM) ListFiles(_ context.Context, dims string) ([]string, error) {
	files, ok := f.dims[dims]
	if !ok {
		return nil, fmt.Errorf("no files match %q", dims)
	}
	return files, nil
}

func (f *fakeSAM) CountFiles(_ context.Context, dims string) (int, error) {
	return len(f.dims[dims]), nil
}

func (f *fakeSAM) DescDefinition(_ context.Context, defname string) (map[string]interface{}, error) {
	dims, ok := f.defs[defname]
	if !ok {
		return nil, fmt.Errorf("no such definition %q", defname)
	}
	return map[string]interface{}{"defname": defname, "dimensions": dims}, nil
}

func (f *fakeSAM) DescDefinitionDims(ctx context.Context, defname string) (string, error) {
	desc, err := f.DescDefinition(ctx, defname)
	if err != nil {
		return "", err
	}
	return desc["dimensions"].(string), nil
}

func (f *fakeSAM) CreateDefinition(_ context.Context, defname, dims, user, group string) error {
	if _, ok := f.defs[defname]; ok {
		return fmt.Errorf("definition %q already exists", defname)
	}
	f.defs[defname] = dims
	return nil
}

func (f *fakeSAM) DeleteDefinition(_ context.Context, defname string) error {
	delete(f.defs, defname)
	return nil
}

func (f *fakeSAM) MakeProjectName(defname string) string {
	return "alice_" + defname + "_20260830120000"
}

func (f *fakeSAM) StartProject(_ context.Context, project, defname, station, group, username string) error {
	f.started[project] = defname
	return nil
}

func (f *fakeSAM) ListProjects(_ context.Context, startedAfter string) ([]string, error) {
	return f.projects, nil
}

func (f *fakeSAM) FindProject(_ context.Context, project, station string) (string, error) {
	return "http://sam/projects/" + project, nil
}

func (f *fakeSAM) ProjectSummary(_ context.Context, projectURL string) (map[string]interface{}, error) {
	if sum, ok := f.summaries[projectURL]; ok {
		return sum, nil
	}
	return map[string]interface{}{}, nil
}

func (f *fakeSAM) DumpStation(_ context.Context, station string) ([]string, error) {
	return f.stationDump, nil
}

func newTestManager(sam *fakeSAM) *Manager {
	m := New(sam)
	m.ensureToken = func() error { return nil }
	m.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return m
}

func TestDefExists(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	m := newTestManager(sam)

	assert.True(t, m.DefExists(context.Background(), "mydef"))
	assert.False(t, m.DefExists(context.Background(), "nope"))
}

func TestMakeDummyDef(t *testing.T) {
	sam := newFakeSAM()
	m := newTestManager(sam)

	assert.NoError(t, m.MakeDummyDef(context.Background(), "dummy"))
	assert.Equal(t, "file_id 0", sam.defs["dummy"])

	// Second call must not recreate the definition.
	assert.NoError(t, m.MakeDummyDef(context.Background(), "dummy"))
}

func TestCreateLimitedDataset(t *testing.T) {
	sam := newFakeSAM()
	dim := "defname: mydef and run_number 100.1,100.2"
	sam.dims[dim] = []string{"f1.root", "f2.root"}
	m := newTestManager(sam)

	name, err := m.CreateLimitedDataset(context.Background(), "mydef", 100, []int{1, 2})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "mydef_"))
	assert.Equal(t, dim, sam.defs[name])
}

func TestCreateLimitedDatasetNoSubruns(t *testing.T) {
	m := newTestManager(newFakeSAM())

	name, err := m.CreateLimitedDataset(context.Background(), "mydef", 100, nil)
	assert.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestCreateLimitedDatasetNoMatch(t *testing.T) {
	sam := newFakeSAM()
	m := newTestManager(sam)

	name, err := m.CreateLimitedDataset(context.Background(), "mydef", 100, []int{7})
	assert.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Empty(t, sam.defs)
}

func TestMakeFileListDefinition(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f2.root", "f1.root"}
	m := newTestManager(sam)

	name, err := m.MakeFileListDefinition(context.Background(), "defname: mydef")
	assert.NoError(t, err)
	assert.Contains(t, name, "_filelist_")
	assert.Equal(t, "file_name f1.root, f2.root", sam.defs[name])
}

func TestMakeFileListDefinitionEmpty(t *testing.T) {
	sam := newFakeSAM()
	m := newTestManager(sam)

	name, err := m.MakeFileListDefinitionFromFiles(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "file_id 0", sam.defs[name])
}

func TestStartProject(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f1.root", "f2.root"}
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "myprj", 0, false, false)
	assert.NoError(t, err)
	assert.Equal(t, "mydef", sam.started["myprj"])
}

func TestStartProjectEmptyDataset(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "myprj", 0, false, false)
	assert.Error(t, err)
	assert.Empty(t, sam.started)
}

func TestStartProjectLimited(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f1.root", "f2.root", "f3.root"}
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "myprj", 2, false, false)
	assert.NoError(t, err)
	assert.Equal(t, "myprj_limit_2", sam.started["myprj"])
	assert.Equal(t, "defname: mydef with limit 2", sam.defs["myprj_limit_2"])
}

func TestStartProjectForceSnapshot(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f1.root"}
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "myprj", 0, true, false)
	assert.NoError(t, err)
	assert.Equal(t, "mydef:force", sam.started["myprj"])
}

func TestStartProjectFileListDef(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f1.root"}
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "myprj", 0, false, true)
	assert.NoError(t, err)
	assert.Contains(t, sam.started["myprj"], "_filelist_")
}

func TestStartProjectDefaultName(t *testing.T) {
	sam := newFakeSAM()
	sam.defs["mydef"] = "run_number 1"
	sam.dims["defname: mydef"] = []string{"f1.root"}
	m := newTestManager(sam)

	err := m.StartProject(context.Background(), "mydef", "", 0, false, false)
	assert.NoError(t, err)
	assert.Contains(t, sam.started, sam.MakeProjectName("mydef"))
}

func TestActiveProjects(t *testing.T) {
	sam := newFakeSAM()
	sam.stationDump = []string{
		"Station uboone",
		"alice_mydef_20260830110000 2 0 0 0 running",
		"bob_other_20260830110000 1 0 0 0 running",
		"short line",
	}
	m := newTestManager(sam)

	prjs, err := m.ActiveProjects(context.Background(), "mydef")
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice_mydef_20260830110000"}, prjs.Sorted())

	all, err := m.ActiveProjects(context.Background(), "")
	assert.NoError(t, err)
	assert.True(t, all.Contains("bob_other_20260830110000"))
}

func TestActiveProjectsSince(t *testing.T) {
	sam := newFakeSAM()
	sam.projects = []string{
		"alice_mydef_20260830110000",
		"alice_mydef_20260829110000",
		"bob_other_20260830110000",
	}
	// First project never ended, second ended two hours ago.
	sam.summaries["http://sam/projects/alice_mydef_20260829110000"] =
		map[string]interface{}{"project_end_time": "2026-08-30T10:00:00+00:00"}
	m := newTestManager(sam)

	prjs, err := m.ActiveProjectsSince(context.Background(), "mydef", 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice_mydef_20260830110000"}, prjs.Sorted())

	// A half-day dropbox wait keeps the recently ended project.
	prjs, err = m.ActiveProjectsSince(context.Background(), "mydef", 0.5)
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"alice_mydef_20260829110000",
		"alice_mydef_20260830110000",
	}, prjs.Sorted())
}

func TestMakeActiveProjectDataset(t *testing.T) {
	sam := newFakeSAM()
	sam.stationDump = []string{
		"alice_mydef_20260830110000 2 0 0 0 running",
	}
	m := newTestManager(sam)

	err := m.MakeActiveProjectDataset(context.Background(), "mydef", 0.5, "mydef_active", "mydef_wait")
	assert.NoError(t, err)
	assert.Equal(t, "snapshot_for_project_name alice_mydef_20260830110000",
		sam.defs["mydef_active"])
	assert.Equal(t,
		"isparentof: (create_date > '2026-08-30T00:00:00' and availability: virtual)",
		sam.defs["mydef_wait"])
}

func TestMakeActiveProjectDatasetNoProjects(t *testing.T) {
	sam := newFakeSAM()
	m := newTestManager(sam)

	err := m.MakeActiveProjectDataset(context.Background(), "mydef", 0, "a", "w")
	assert.NoError(t, err)
	assert.Equal(t, "file_id 0", sam.defs["a"])
	assert.Equal(t, "file_id 0", sam.defs["w"])
}

var _ dimension.Catalog = (*fakeSAM)(nil)
