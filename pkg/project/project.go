// Package project manages SAM consumer projects and derived dataset
// definitions for batch submissions: limited datasets, file-list
// definitions, and recovery datasets built from active projects.
package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LArSoft/larbatch/pkg/auth"
	"github.com/LArSoft/larbatch/pkg/dimension"
	"github.com/LArSoft/larbatch/pkg/gridenv"
	"github.com/LArSoft/larbatch/pkg/util/log"
)

const samTimeLayout = "2006-01-02T15:04:05"

// emptyDim is a legal dimension guaranteed to match no files.
const emptyDim = "file_id 0"

// SAM is the catalog surface the project manager needs. It is
// satisfied by *samweb.Client.
type SAM interface {
	Experiment() string
	ListFiles(ctx context.Context, dims string) ([]string, error)
	CountFiles(ctx context.Context, dims string) (int, error)
	DescDefinition(ctx context.Context, defname string) (map[string]interface{}, error)
	DescDefinitionDims(ctx context.Context, defname string) (string, error)
	CreateDefinition(ctx context.Context, defname, dims, user, group string) error
	DeleteDefinition(ctx context.Context, defname string) error
	MakeProjectName(defname string) string
	StartProject(ctx context.Context, project, defname, station, group, username string) error
	ListProjects(ctx context.Context, startedAfter string) ([]string, error)
	FindProject(ctx context.Context, project, station string) (string, error)
	ProjectSummary(ctx context.Context, projectURL string) (map[string]interface{}, error)
	DumpStation(ctx context.Context, station string) ([]string, error)
}

// Manager ties a SAM client to a dimension evaluator and the local
// grid identity.
type Manager struct {
	sam         SAM
	eval        *dimension.Evaluator
	ensureToken func() error
	now         func() time.Time
}

// New returns a project manager for the given catalog.
func New(sam SAM) *Manager {
	return &Manager{
		sam:         sam,
		eval:        dimension.NewEvaluator(sam),
		ensureToken: auth.TestToken,
		now:         time.Now,
	}
}

// Evaluator exposes the manager's dimension evaluator, so callers
// share its memo cache.
func (m *Manager) Evaluator() *dimension.Evaluator {
	return m.eval
}

// DefExists reports whether a dataset definition exists.
func (m *Manager) DefExists(ctx context.Context, defname string) bool {
	_, err := m.sam.DescDefinition(ctx, defname)
	return err == nil
}

// MakeDummyDef creates a definition matching no files, unless it
// already exists.
func (m *Manager) MakeDummyDef(ctx context.Context, defname string) error {
	if m.DefExists(ctx, defname) {
		return nil
	}
	log.Infof("making dummy dataset definition %s", defname)
	if err := m.ensureToken(); err != nil {
		return err
	}
	return m.sam.CreateDefinition(ctx, defname, emptyDim,
		gridenv.User(), m.sam.Experiment())
}

// CreateLimitedDataset creates a definition restricted to the given
// run and subruns. It returns the new definition name, or "" when
// there are no subruns or no files match.
func (m *Manager) CreateLimitedDataset(ctx context.Context, defname string, run int, subruns []int) (string, error) {
	if len(subruns) == 0 {
		return "", nil
	}

	// Comma-separated run.subrun pairs, acceptable as a run_number
	// constraint.
	pairs := make([]string, len(subruns))
	for i, subrun := range subruns {
		pairs[i] = fmt.Sprintf("%d.%d", run, subrun)
	}
	dim := fmt.Sprintf("defname: %s and run_number %s", defname, strings.Join(pairs, ","))

	nfiles, err := m.sam.CountFiles(ctx, dim)
	if err != nil {
		return "", err
	}
	if nfiles == 0 {
		return "", nil
	}

	if err := m.ensureToken(); err != nil {
		return "", err
	}
	newdefname := defname + "_" + uuid.New().String()
	if err := m.sam.CreateDefinition(ctx, newdefname, dim,
		gridenv.User(), m.sam.Experiment()); err != nil {
		return "", err
	}
	return newdefname, nil
}

// MakeFileListDefinition evaluates a dimension into a completed file
// set and creates a file-list definition from it. The new definition
// name is returned.
func (m *Manager) MakeFileListDefinition(ctx context.Context, dim string) (string, error) {
	log.Infof("making file list definition using dimension %q", dim)
	files, err := m.eval.ListFiles(ctx, dim)
	if err != nil {
		return "", err
	}
	return m.MakeFileListDefinitionFromFiles(ctx, files.Sorted())
}

// MakeFileListDefinitionFromFiles creates a definition that matches
// exactly the given files.
func (m *Manager) MakeFileListDefinitionFromFiles(ctx context.Context, files []string) (string, error) {
	if err := m.ensureToken(); err != nil {
		return "", err
	}
	log.Infof("making file list definition with %d files", len(files))

	listdim := emptyDim
	if len(files) > 0 {
		listdim = "file_name " + strings.Join(files, ", ")
	}

	defname := gridenv.User() + "_filelist_" + uuid.New().String()
	if err := m.sam.CreateDefinition(ctx, defname, listdim,
		gridenv.User(), m.sam.Experiment()); err != nil {
		return "", err
	}
	return defname, nil
}

// StartProject starts a SAM project on the input dataset. When
// maxFiles is positive and the dataset is larger, a limited
// definition is substituted. When filelistdef is true, the input is
// frozen into a file-list definition instead of relying on server
// snapshots. forceSnapshot appends the ":force" tag.
func (m *Manager) StartProject(ctx context.Context, defname, prjname string, maxFiles int, forceSnapshot, filelistdef bool) error {
	if prjname == "" {
		prjname = m.sam.MakeProjectName(defname)
	}
	log.Infof("starting project %s", prjname)

	if err := m.ensureToken(); err != nil {
		return err
	}

	// Figure out how many files are in the input dataset.
	var nf int
	if filelistdef {
		files, err := m.eval.ListFiles(ctx, "defname: "+defname)
		if err != nil {
			return err
		}
		nf = len(files)
	} else {
		var err error
		nf, err = m.sam.CountFiles(ctx, "defname: "+defname)
		if err != nil {
			return err
		}
	}
	log.Infof("input dataset has %d files", nf)
	if nf == 0 {
		return errors.Errorf("dataset %s has no files", defname)
	}

	if maxFiles > 0 && nf > maxFiles {
		limitdef := fmt.Sprintf("%s_limit_%d", prjname, maxFiles)
		if m.DefExists(ctx, limitdef) && !filelistdef {
			log.Infof("using already created limited dataset definition %s", limitdef)
		} else {
			dim := fmt.Sprintf("defname: %s with limit %d", defname, maxFiles)
			if filelistdef {
				var err error
				limitdef, err = m.MakeFileListDefinition(ctx, dim)
				if err != nil {
					return err
				}
			} else {
				log.Infof("creating limited dataset definition %s", limitdef)
				if err := m.sam.CreateDefinition(ctx, limitdef, dim,
					gridenv.User(), m.sam.Experiment()); err != nil {
					return err
				}
			}
		}
		defname = limitdef
	} else if filelistdef {
		var err error
		defname, err = m.MakeFileListDefinition(ctx, "defname: "+defname)
		if err != nil {
			return err
		}
	}

	if forceSnapshot {
		log.Infof("forcing snapshot")
		defname += ":force"
	}

	return m.sam.StartProject(ctx, prjname, defname,
		m.sam.Experiment(), m.sam.Experiment(), gridenv.User())
}

// projectStem returns the prefix shared by all project names derived
// from a definition, or "" when defname is empty.
func (m *Manager) projectStem(defname string) string {
	if defname == "" {
		return ""
	}
	name := m.sam.MakeProjectName(defname)
	if i := strings.LastIndex(name, "_"); i >= 0 {
		name = name[:i]
	}
	return name + "_"
}

// ActiveProjects returns the projects currently known to the
// station, filtered to those derived from defname when it is
// non-empty.
func (m *Manager) ActiveProjects(ctx context.Context, defname string) (dimension.Set, error) {
	prjstem := m.projectStem(defname)
	result := dimension.NewSet()

	lines, err := m.sam.DumpStation(ctx, m.sam.Experiment())
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) > 5 {
			prjname := words[0]
			if prjstem == "" || strings.HasPrefix(prjname, prjstem) {
				result[prjname] = struct{}{}
			}
		}
	}
	return result, nil
}

// ActiveProjectsSince returns projects started within the last 72
// hours that have not ended, or whose end time is within the dropbox
// waiting interval (in days). Filtered like ActiveProjects.
func (m *Manager) ActiveProjectsSince(ctx context.Context, defname string, dropboxWait float64) (dimension.Set, error) {
	prjstem := m.projectStem(defname)
	result := dimension.NewSet()

	tmin := m.now().UTC().Add(-72 * time.Hour)
	prjnames, err := m.sam.ListProjects(ctx, tmin.Format(samTimeLayout))
	if err != nil {
		return nil, err
	}

	for _, prjname := range prjnames {
		if prjstem != "" && !strings.HasPrefix(prjname, prjstem) {
			continue
		}

		// Check the end time. A project with no end time, or one
		// that ended within the waiting interval, is still active.
		var age float64
		prjurl, err := m.sam.FindProject(ctx, prjname, m.sam.Experiment())
		if err == nil && prjurl != "" {
			prjsum, err := m.sam.ProjectSummary(ctx, prjurl)
			if err != nil {
				log.WithError(err).Warnf("no summary for project %s", prjname)
			} else if tendstr, ok := prjsum["project_end_time"].(string); ok && len(tendstr) >= 19 {
				if tend, err := time.Parse(samTimeLayout, tendstr[:19]); err == nil {
					age = m.now().UTC().Sub(tend).Seconds()
				}
			}
		}

		if age <= dropboxWait*86400 {
			result[prjname] = struct{}{}
		}
	}
	return result, nil
}

// MakeActiveProjectDataset creates (or replaces) two definitions:
// activeDefname matching files with snapshots in active projects,
// and waitDefname matching recently declared files still inside the
// dropbox waiting interval.
func (m *Manager) MakeActiveProjectDataset(ctx context.Context, defname string, dropboxWait float64, activeDefname, waitDefname string) error {
	if err := m.ensureToken(); err != nil {
		return err
	}

	prjs1, err := m.ActiveProjects(ctx, defname)
	if err != nil {
		return err
	}
	prjs2, err := m.ActiveProjectsSince(ctx, defname, dropboxWait)
	if err != nil {
		return err
	}
	prjs := prjs1.Union(prjs2)

	dim := emptyDim
	if len(prjs) > 0 {
		dim = "snapshot_for_project_name " + strings.Join(prjs.Sorted(), ",")
	}
	if err := m.replaceDefinition(ctx, activeDefname, dim); err != nil {
		return err
	}

	// Files declared within the waiting interval are not yet safe
	// to consume.
	dim = emptyDim
	if dropboxWait > 0 {
		tmin := m.now().UTC().Add(-time.Duration(dropboxWait * 86400 * float64(time.Second)))
		dim = fmt.Sprintf("isparentof: (create_date > '%s' and availability: virtual)",
			tmin.Format(samTimeLayout))
	}
	return m.replaceDefinition(ctx, waitDefname, dim)
}

func (m *Manager) replaceDefinition(ctx context.Context, defname, dim string) error {
	if m.DefExists(ctx, defname) {
		log.Infof("updating dataset definition %s", defname)
		if err := m.sam.DeleteDefinition(ctx, defname); err != nil {
			return err
		}
	} else {
		log.Infof("creating dataset definition %s", defname)
	}
	return m.sam.CreateDefinition(ctx, defname, dim,
		gridenv.User(), m.sam.Experiment())
}
