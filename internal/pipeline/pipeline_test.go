package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-patcher/internal/archive"
	"class-patcher/internal/exclude"
	"class-patcher/internal/ledger"
	"class-patcher/internal/rewrite"
	"class-patcher/internal/source"
	"class-patcher/internal/testutil"
)

type fakeConverter struct {
	calls []string
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, in, out string) error {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

type fixture struct {
	dir     string
	classes string
	out     string
	conv    *fakeConverter
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		dir:     dir,
		classes: filepath.Join(dir, "classes"),
		out:     filepath.Join(dir, "build", "patch", "release"),
		conv:    &fakeConverter{},
	}
}

func (f *fixture) options() Options {
	return Options{
		LedgerPath: filepath.Join(f.out, ledger.FileName),
		PatchJar:   filepath.Join(f.out, "patchClass.jar"),
		Output:     filepath.Join(f.out, "patch.jar"),
		Policy:     exclude.New("com.app.App"),
		Rewriter:   rewrite.New(""),
		Converter:  f.conv,
		Workers:    2,
		Log:        log.New(io.Discard),
	}
}

func (f *fixture) run(t *testing.T, inputs ...string) (*Report, error) {
	t.Helper()
	if len(inputs) == 0 {
		inputs = []string{f.classes}
	}
	units, err := source.Collect(inputs)
	require.NoError(t, err)
	return Run(context.Background(), units, f.options())
}

func rewritten(t *testing.T, b []byte) []byte {
	t.Helper()
	out, err := rewrite.New("").Rewrite(b)
	require.NoError(t, err)
	return out
}

func changed(name string) []byte {
	return testutil.Sample(name).Pad(1).Bytes()
}

func TestFirstBuildRecordsBaseline(t *testing.T) {
	f := newFixture(t)
	foo := testutil.SampleBytes("com/app/Foo")
	path := testutil.WriteFile(t, f.classes, "com/app/Foo.class", foo)
	testutil.WriteFile(t, f.classes, "com/app/Bar.class", testutil.SampleBytes("com/app/Bar"))

	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, rep.State)
	assert.Equal(t, 2, rep.Rewritten)
	assert.Empty(t, rep.Included)
	assert.Empty(t, f.conv.calls)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rewritten(t, foo), got)

	l, err := ledger.Load(filepath.Join(f.out, ledger.FileName))
	require.NoError(t, err)
	assert.Equal(t, []string{"com/app/Bar.class", "com/app/Foo.class"}, l.Paths())
	h, _ := l.Get("com/app/Foo.class")
	assert.Equal(t, ledger.Hash(got), h)

	assert.Empty(t, testutil.ReadJar(t, filepath.Join(f.out, "patchClass.jar")))
}

func TestSecondBuildPatchesOnlyChangedModule(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	testutil.WriteFile(t, f.classes, "com/app/Bar.class", testutil.SampleBytes("com/app/Bar"))
	_, err := f.run(t)
	require.NoError(t, err)

	// The compiler emits fresh class files on every build.
	foo := changed("com/app/Foo")
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", foo)
	testutil.WriteFile(t, f.classes, "com/app/Bar.class", testutil.SampleBytes("com/app/Bar"))

	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, StateConverted, rep.State)
	assert.Equal(t, []string{"com/app/Foo.class"}, rep.Included)
	assert.Equal(t, []string{"com/app/Foo.class"}, rep.Summary.Changed)
	assert.Equal(t, 1, rep.Summary.Unchanged)

	require.Len(t, f.conv.calls, 1)
	assert.Equal(t, filepath.Join(f.out, "patchClass.jar"), f.conv.calls[0])
	assert.NoFileExists(t, filepath.Join(f.out, "patchClass.jar"))
	assert.Equal(t, filepath.Join(f.out, "patch.jar"), rep.Output)

	entries := testutil.ReadJar(t, rep.Output)
	require.Len(t, entries, 1)
	assert.Equal(t, "com/app/Foo.class", entries[0].Name)
	assert.Equal(t, rewritten(t, foo), entries[0].Data)
}

func TestNewModuleIsIncluded(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	_, err := f.run(t)
	require.NoError(t, err)

	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	testutil.WriteFile(t, f.classes, "com/app/New.class", testutil.SampleBytes("com/app/New"))
	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"com/app/New.class"}, rep.Included)
	assert.Equal(t, []string{"com/app/New.class"}, rep.Summary.Added)
}

func TestArchiveRoundTrip(t *testing.T) {
	f := newFixture(t)
	jar := filepath.Join(f.dir, "libs", "app.jar")
	app := testutil.SampleBytes("com/app/App")
	b1 := testutil.SampleBytes("com/app/B")
	c := testutil.SampleBytes("com/app/C")
	manifest := []byte("Manifest-Version: 1.0\n")

	testutil.WriteJar(t, jar,
		testutil.Entry{Name: "META-INF/MANIFEST.MF", Data: manifest},
		testutil.Entry{Name: "com/app/App.class", Data: app},
		testutil.Entry{Name: "com/app/B.class", Data: b1},
		testutil.Entry{Name: "com/app/C.class", Data: c},
	)
	_, err := f.run(t, jar)
	require.NoError(t, err)

	b2 := changed("com/app/B")
	testutil.WriteJar(t, jar,
		testutil.Entry{Name: "META-INF/MANIFEST.MF", Data: manifest},
		testutil.Entry{Name: "com/app/App.class", Data: app},
		testutil.Entry{Name: "com/app/B.class", Data: b2},
		testutil.Entry{Name: "com/app/C.class", Data: c},
	)
	rep, err := f.run(t, jar)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Excluded)
	assert.Equal(t, 2, rep.Rewritten)
	assert.Equal(t, []string{"com/app/B.class"}, rep.Included)

	entries := testutil.ReadJar(t, jar)
	require.Equal(t, []string{"META-INF/MANIFEST.MF", "com/app/App.class", "com/app/B.class", "com/app/C.class"},
		testutil.Names(entries))
	assert.Equal(t, manifest, entries[0].Data)
	assert.Equal(t, app, entries[1].Data)
	assert.Equal(t, rewritten(t, b2), entries[2].Data)
	assert.Equal(t, rewritten(t, c), entries[3].Data)

	patch := testutil.ReadJar(t, rep.Output)
	assert.Equal(t, []string{"com/app/B.class"}, testutil.Names(patch))
}

func TestExcludedModulesAreUntouched(t *testing.T) {
	f := newFixture(t)
	app := testutil.SampleBytes("com/app/App")
	helper := testutil.SampleBytes("com/demo/patch/Hack")
	support := testutil.SampleBytes("androidx/core/Compat")
	appPath := testutil.WriteFile(t, f.classes, "com/app/App.class", app)
	testutil.WriteFile(t, f.classes, "com/demo/patch/Hack.class", helper)
	testutil.WriteFile(t, f.classes, "androidx/core/Compat.class", support)

	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Excluded)
	assert.Zero(t, rep.Rewritten)

	got, err := os.ReadFile(appPath)
	require.NoError(t, err)
	assert.Equal(t, app, got)
	l, err := ledger.Load(filepath.Join(f.out, ledger.FileName))
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestMalformedModuleIsSkipped(t *testing.T) {
	f := newFixture(t)
	broken := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00}
	path := testutil.WriteFile(t, f.classes, "com/app/Broken.class", broken)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))

	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Rewritten)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, broken, got)
	l, err := ledger.Load(filepath.Join(f.out, ledger.FileName))
	require.NoError(t, err)
	_, ok := l.Get("com/app/Broken.class")
	assert.False(t, ok)
}

func TestVersionedEntriesPassThrough(t *testing.T) {
	f := newFixture(t)
	jar := filepath.Join(f.dir, "libs", "mr.jar")
	a := testutil.SampleBytes("p/A")
	testutil.WriteJar(t, jar, testutil.Entry{Name: "p/A.class", Data: a})
	_, err := f.run(t, jar)
	require.NoError(t, err)

	b := testutil.SampleBytes("p/B")
	testutil.WriteJar(t, jar,
		testutil.Entry{Name: "META-INF/versions/9/p/B.class", Data: b},
		testutil.Entry{Name: "p/A.class", Data: a},
	)
	rep, err := f.run(t, jar)
	require.NoError(t, err)
	assert.Empty(t, rep.Included)
	assert.Equal(t, StateSkipped, rep.State)

	entries := testutil.ReadJar(t, jar)
	require.Len(t, entries, 2)
	assert.Equal(t, b, entries[0].Data)
	l, err := ledger.Load(filepath.Join(f.out, ledger.FileName))
	require.NoError(t, err)
	assert.Equal(t, []string{"p/A.class"}, l.Paths())
}

func TestMisnamedModuleStaysOutOfLedger(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	_, err := f.run(t)
	require.NoError(t, err)

	stray := testutil.SampleBytes("com/app/Bar")
	path := testutil.WriteFile(t, f.classes, "com/app/Stray.class", stray)
	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, rep.Included)
	assert.Empty(t, f.conv.calls)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stray, got)
	l, err := ledger.Load(filepath.Join(f.out, ledger.FileName))
	require.NoError(t, err)
	_, ok := l.Get("com/app/Stray.class")
	assert.False(t, ok)

	// Once the module matches its path it is picked up as new.
	testutil.WriteFile(t, f.classes, "com/app/Stray.class", testutil.SampleBytes("com/app/Stray"))
	rep, err = f.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"com/app/Stray.class"}, rep.Included)
	assert.Equal(t, StateConverted, rep.State)
}

func TestArchiveFailureAbortsBuild(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	bad := testutil.WriteFile(t, f.dir, "libs/bad.jar", []byte("not a zip"))

	rep, err := f.run(t, f.classes, bad)
	require.Error(t, err)
	var aerr *archive.ArchiveIOError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, bad, aerr.Path)
	assert.Equal(t, StateProcessing, rep.State)

	assert.NoFileExists(t, filepath.Join(f.out, ledger.FileName))
	assert.NoFileExists(t, filepath.Join(f.out, "patchClass.jar"))
	matches, _ := filepath.Glob(filepath.Join(f.out, ".tmp-*"))
	assert.Empty(t, matches)
}

func TestConversionFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	_, err := f.run(t)
	require.NoError(t, err)

	testutil.WriteFile(t, f.classes, "com/app/Foo.class", changed("com/app/Foo"))
	f.conv.err = errors.New("dx exploded")
	rep, err := f.run(t)
	require.ErrorIs(t, err, f.conv.err)
	assert.Equal(t, StateArchiveFinalized, rep.State)
	assert.FileExists(t, filepath.Join(f.out, "patchClass.jar"))
}

func TestDuplicateModuleCountsOnce(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.classes, "com/app/Foo.class", testutil.SampleBytes("com/app/Foo"))
	jar := testutil.WriteJar(t, filepath.Join(f.dir, "libs", "dup.jar"),
		testutil.Entry{Name: "com/app/Foo.class", Data: testutil.SampleBytes("com/app/Foo")})

	rep, err := f.run(t, f.classes, jar)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Rewritten)
	assert.Equal(t, 1, rep.Duplicates)
}

func TestIncludedOrderFollowsInputs(t *testing.T) {
	f := newFixture(t)
	var want []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("com/app/M%02d", i)
		testutil.WriteFile(t, f.classes, name+".class", testutil.SampleBytes(name))
		want = append(want, name+".class")
	}
	_, err := f.run(t)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("com/app/M%02d", i)
		testutil.WriteFile(t, f.classes, name+".class", changed(name))
	}
	rep, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, want, rep.Included)
	assert.Equal(t, want, testutil.Names(testutil.ReadJar(t, rep.Output)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ledger-persisted", StateLedgerPersisted.String())
	assert.Equal(t, "State(42)", State(42).String())
}
