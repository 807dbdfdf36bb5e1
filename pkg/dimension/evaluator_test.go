package dimension

import (
	"context"
	"fmt"

	. "gopkg.in/check.v1"
)

// fakeCatalog serves canned dimension results and definition
// descriptions, counting catalog round trips.
type fakeCatalog struct {
	dims  map[string][]string
	defs  map[string]string
	calls map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		dims:  make(map[string][]string),
		defs:  make(map[string]string),
		calls: make(map[string]int),
	}
}

func (f *fakeCatalog) ListFiles(_ context.Context, dims string) ([]string, error) {
	f.calls[dims]++
	files, ok := f.dims[dims]
	if !ok {
		return nil, fmt.Errorf("no files match dimension %q", dims)
	}
	return files, nil
}

func (f *fakeCatalog) DescDefinitionDims(_ context.Context, defname string) (string, error) {
	d, ok := f.defs[defname]
	if !ok {
		return "", fmt.Errorf("no such definition %q", defname)
	}
	return d, nil
}

type EvaluatorTest struct{}

func init() {
	Suite(&EvaluatorTest{})
}

func (et *EvaluatorTest) TestAtomicQuery(c *C) {
	cat := newFakeCatalog()
	cat.dims["run_number 1"] = []string{"f1.root", "f2.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "run_number 1")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root", "f2.root"})
}

func (et *EvaluatorTest) TestUnion(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f1.root", "f2.root"}
	cat.dims["b 2"] = []string{"f2.root", "f3.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "a 1 or b 2")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root", "f2.root", "f3.root"})
}

func (et *EvaluatorTest) TestDifferenceKeepsLeftOperand(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f1.root", "f2.root"}
	cat.dims["b 2"] = []string{"f2.root", "f3.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "a 1 minus b 2")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root"})
}

func (et *EvaluatorTest) TestLimitTruncatesDeterministically(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f3.root", "f1.root", "f2.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "a 1 with limit 2")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root", "f2.root"})
}

func (et *EvaluatorTest) TestSubQueryMemoized(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f1.root"}
	cat.dims["b 2"] = []string{"f2.root"}
	ev := NewEvaluator(cat)

	_, err := ev.ListFiles(context.Background(), "a 1 or b 2")
	c.Assert(err, IsNil)
	_, err = ev.ListFiles(context.Background(), "a 1 minus b 2")
	c.Assert(err, IsNil)

	c.Assert(cat.calls["a 1"], Equals, 1)
	c.Assert(cat.calls["b 2"], Equals, 1)
}

func (et *EvaluatorTest) TestFlushDropsMemo(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f1.root"}
	ev := NewEvaluator(cat)

	_, err := ev.ListFiles(context.Background(), "a 1")
	c.Assert(err, IsNil)
	ev.Flush()
	_, err = ev.ListFiles(context.Background(), "a 1")
	c.Assert(err, IsNil)
	c.Assert(cat.calls["a 1"], Equals, 2)
}

func (et *EvaluatorTest) TestSimpleDefnameStaysUnexpanded(c *C) {
	cat := newFakeCatalog()
	cat.defs["mydef"] = "run_number 1"
	cat.dims["defname: mydef"] = []string{"f1.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "defname: mydef")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root"})
	c.Assert(cat.calls["defname: mydef"], Equals, 1)
}

func (et *EvaluatorTest) TestCompoundDefnameExpanded(c *C) {
	cat := newFakeCatalog()
	cat.defs["compound"] = "a 1 or b 2"
	cat.dims["a 1"] = []string{"f1.root"}
	cat.dims["b 2"] = []string{"f2.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "defname: compound")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root", "f2.root"})
	// The compound definition must never reach the catalog as a
	// single query.
	c.Assert(cat.calls["defname: compound"], Equals, 0)
}

func (et *EvaluatorTest) TestNestedDefnameExpansion(c *C) {
	cat := newFakeCatalog()
	cat.defs["outer"] = "defname: inner minus b 2"
	cat.defs["inner"] = "a 1 or c 3"
	cat.dims["a 1"] = []string{"f1.root", "f2.root"}
	cat.dims["b 2"] = []string{"f2.root"}
	cat.dims["c 3"] = []string{"f3.root"}
	ev := NewEvaluator(cat)

	files, err := ev.ListFiles(context.Background(), "defname: outer")
	c.Assert(err, IsNil)
	c.Assert(files.Sorted(), DeepEquals, []string{"f1.root", "f3.root"})
}

func (et *EvaluatorTest) TestUnknownDefnameIsError(c *C) {
	ev := NewEvaluator(newFakeCatalog())
	_, err := ev.ListFiles(context.Background(), "defname: nope")
	c.Assert(err, NotNil)
}

func (et *EvaluatorTest) TestMalformedQueryIsError(c *C) {
	cat := newFakeCatalog()
	cat.dims["a 1"] = []string{"f1.root"}
	ev := NewEvaluator(cat)

	_, err := ev.ListFiles(context.Background(), "a 1 ( or")
	c.Assert(err, NotNil)
}

func (et *EvaluatorTest) TestSetOperations(c *C) {
	a := NewSet("f1", "f2")
	b := NewSet("f2", "f3")
	c.Assert(a.Union(b).Sorted(), DeepEquals, []string{"f1", "f2", "f3"})
	c.Assert(a.Minus(b).Sorted(), DeepEquals, []string{"f1"})
	c.Assert(a.Contains("f1"), Equals, true)
	c.Assert(a.Contains("f3"), Equals, false)
	c.Assert(a.Truncate(1).Sorted(), DeepEquals, []string{"f1"})
	c.Assert(a.Truncate(5).Sorted(), DeepEquals, []string{"f1", "f2"})
	c.Assert(len(a.Truncate(0)), Equals, 0)
}
