package dimension

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LArSoft/larbatch/pkg/util/log"
)

var (
	queryCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dimension_queries_total",
		Help: "Number of dimension queries evaluated.",
	})
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dimension_cache_hits_total",
		Help: "Number of dimension sub-queries answered from the cache.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dimension_cache_misses_total",
		Help: "Number of dimension sub-queries sent to the catalog.",
	})
)

func init() {
	// Metrics have to be registered to be exposed:
	prometheus.MustRegister(queryCount)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

// Catalog is the slice of the file catalog the evaluator needs:
// resolving an atomic dimension to file names and looking up the
// dimension string behind a dataset definition.
type Catalog interface {
	ListFiles(ctx context.Context, dims string) ([]string, error)
	DescDefinitionDims(ctx context.Context, defname string) (string, error)
}

// Evaluator resolves dimension queries into completed file sets.
//
// It exists to work around inefficiencies in the server-side
// evaluation of compound queries: "or" and "minus" clauses are
// performed as set operations on completed sets here rather than as
// database queries there. Sub-query results are memoized for the
// lifetime of the evaluator.
type Evaluator struct {
	catalog Catalog

	mu    sync.Mutex
	cache map[string]Set
}

// NewEvaluator returns an evaluator backed by the given catalog.
func NewEvaluator(catalog Catalog) *Evaluator {
	return &Evaluator{
		catalog: catalog,
		cache:   make(map[string]Set),
	}
}

// Flush drops all memoized results.
func (e *Evaluator) Flush() {
	e.mu.Lock()
	e.cache = make(map[string]Set)
	e.mu.Unlock()
}

func (e *Evaluator) cached(dim string) (Set, bool) {
	e.mu.Lock()
	s, ok := e.cache[dim]
	e.mu.Unlock()
	return s, ok
}

func (e *Evaluator) memoize(dim string, s Set) {
	e.mu.Lock()
	e.cache[dim] = s
	e.mu.Unlock()
}

// ExpandDefnames rewrites "defname: X" clauses whose stored
// dimension contains a top level "or" or "minus" into a
// parenthesized copy of that dimension. Definitions without such
// clauses are left alone, since the server handles them efficiently.
func (e *Evaluator) ExpandDefnames(ctx context.Context, dim string) (string, error) {
	var out []string
	isdefname := false
	for _, word := range strings.Fields(dim) {
		if isdefname {
			isdefname = false
			descdim, err := e.catalog.DescDefinitionDims(ctx, word)
			if err != nil {
				return "", errors.Wrapf(err, "expanding defname %s", word)
			}
			if !strings.Contains(descdim, " or ") && !strings.Contains(descdim, " minus ") {
				out = append(out, "defname:", word)
			} else {
				out = append(out, "(", descdim, ")")
			}
		} else if word == "defname:" {
			isdefname = true
		} else {
			out = append(out, word)
		}
	}
	return strings.Join(out, " "), nil
}

// ListFiles evaluates a dimension and returns the completed file
// set. Callers must not modify the returned set.
func (e *Evaluator) ListFiles(ctx context.Context, dim string) (Set, error) {
	queryCount.Inc()
	log.Infof("generating completed set of files using dimension %q", dim)

	if s, ok := e.cached(dim); ok {
		cacheHits.Inc()
		log.Infof("fetching result from cache")
		return s, nil
	}

	// Expand out "defname:" clauses containing top level "or" or
	// "minus" clauses, repeating until a fixed point is reached.
	for {
		newdim, err := e.ExpandDefnames(ctx, dim)
		if err != nil {
			return nil, err
		}
		if newdim == dim {
			break
		}
		dim = newdim
	}

	rpn, err := TokenizeRPN(dim)
	if err != nil {
		return nil, err
	}

	var stack []Set
	for _, item := range rpn {
		switch {
		case item == tokOr:
			// Set union of the top two items on the stack.
			if len(stack) < 2 {
				return nil, errors.Errorf("malformed dimension query %q", dim)
			}
			union := stack[len(stack)-1].Union(stack[len(stack)-2])
			stack = stack[:len(stack)-2]
			log.Infof("set union %d files", len(union))
			stack = append(stack, union)

		case item == tokMinus:
			// Set difference: the second item from the top minus
			// the top item.
			if len(stack) < 2 {
				return nil, errors.Errorf("malformed dimension query %q", dim)
			}
			diff := stack[len(stack)-2].Minus(stack[len(stack)-1])
			stack = stack[:len(stack)-2]
			log.Infof("set difference %d files", len(diff))
			stack = append(stack, diff)

		case strings.HasPrefix(item, limitClause):
			if len(stack) == 0 {
				return nil, errors.Errorf("malformed dimension query %q", dim)
			}
			n, err := strconv.Atoi(strings.TrimSpace(item[len(limitClause):]))
			if err != nil {
				return nil, errors.Wrapf(err, "bad limit clause %q", item)
			}
			stack[len(stack)-1] = stack[len(stack)-1].Truncate(n)
			log.Infof("truncated to %d files", len(stack[len(stack)-1]))

		default:
			// An atomic dimension: resolve it to a completed set
			// and push it.
			log.Infof("evaluating %q", item)
			files, ok := e.cached(item)
			if ok {
				cacheHits.Inc()
				log.Infof("fetching result from cache")
			} else {
				cacheMisses.Inc()
				names, err := e.catalog.ListFiles(ctx, item)
				if err != nil {
					return nil, errors.Wrapf(err, "evaluating dimension %q", item)
				}
				files = NewSet(names...)
				e.memoize(item, files)
			}
			log.Infof("result %d files", len(files))
			stack = append(stack, files)
		}
	}

	if len(stack) == 0 {
		return nil, errors.Errorf("empty dimension query %q", dim)
	}
	final := stack[len(stack)-1]
	log.Infof("final result %d files", len(final))
	e.memoize(dim, final)
	return final, nil
}
