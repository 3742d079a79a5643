// Package pipeline runs one patch build: it rewrites every eligible module of
// the build inputs in place, fingerprints the results against the previous
// build and collects the changed modules into the patch jar.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"class-patcher/internal/archive"
	"class-patcher/internal/changeset"
	"class-patcher/internal/convert"
	"class-patcher/internal/exclude"
	"class-patcher/internal/ledger"
	"class-patcher/internal/rewrite"
	"class-patcher/internal/source"
	"class-patcher/internal/validate"
)

// State is the stage a build reached.
type State int

const (
	StateIdle State = iota
	StateLedgerLoaded
	StateProcessing
	StateLedgerPersisted
	StateArchiveFinalized
	// StateConverted means the patch jar was handed to the converter.
	StateConverted
	// StateSkipped means nothing changed, so no conversion ran.
	StateSkipped
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateLedgerLoaded:     "ledger-loaded",
	StateProcessing:       "processing",
	StateLedgerPersisted:  "ledger-persisted",
	StateArchiveFinalized: "archive-finalized",
	StateConverted:        "converted",
	StateSkipped:          "skipped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a build.
type Options struct {
	// LedgerPath is the fingerprint ledger read at start and replaced at the end.
	LedgerPath string
	// PatchJar receives the changed modules.
	PatchJar string
	// Output is the converted patch. Ignored without a Converter.
	Output string

	Policy    *exclude.Policy
	Rewriter  *rewrite.Rewriter
	Converter convert.Converter

	// Workers bounds concurrent rewrites of loose modules; 0 means GOMAXPROCS.
	Workers int
	Log     *log.Logger
}

// Report describes a finished (or aborted) build.
type Report struct {
	State State

	Rewritten  int
	Excluded   int
	Failed     int
	Duplicates int

	// Included lists the patch jar entries in the order they were appended.
	Included []string
	Summary  changeset.Summary
	// Output is the path of the converted patch, empty when none was produced.
	Output string
}

type build struct {
	opts   Options
	log    *log.Logger
	prev   *ledger.Ledger
	next   *ledger.Ledger
	set    *changeset.Set
	asm    *archive.Assembler
	report *Report
}

// looseResult is what a worker hands to the committer.
type looseResult struct {
	excluded string
	data     []byte
	err      error
}

// Run processes units in order and produces the patch. Per-module rewrite
// failures are logged and skipped. Any I/O failure on a jar, the ledger or a
// loose module aborts the build; the ledger is then left as it was and no
// patch jar is written.
func Run(ctx context.Context, units []source.Unit, opts Options) (*Report, error) {
	b := &build{
		opts:   opts,
		log:    opts.Log,
		set:    changeset.NewSet(),
		next:   ledger.New(),
		report: &Report{},
	}
	if b.log == nil {
		b.log = log.Default()
	}
	if b.opts.Rewriter == nil {
		b.opts.Rewriter = rewrite.New("")
	}
	err := b.run(ctx, units)
	return b.report, err
}

func (b *build) run(ctx context.Context, units []source.Unit) (err error) {
	prev, err := ledger.Load(b.opts.LedgerPath)
	if err != nil {
		b.log.Warn("previous ledger unreadable, treating as first build", "err", err)
	}
	b.prev = prev
	b.report.State = StateLedgerLoaded
	if b.prev.Empty() {
		b.log.Info("no previous fingerprints, recording baseline", "ledger", b.opts.LedgerPath)
	}

	b.asm, err = archive.NewAssembler(b.opts.PatchJar)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			b.asm.Abort()
		}
	}()

	b.report.State = StateProcessing
	results, err := b.rewriteLoose(ctx, units)
	if err != nil {
		return err
	}
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch u := u.(type) {
		case *source.LooseModule:
			err = b.commitLoose(u, results[i])
		case *source.ArchiveFile:
			err = b.processArchive(u)
		default:
			err = fmt.Errorf("%w: %T", source.ErrUnknownUnit, u)
		}
		if err != nil {
			return err
		}
	}

	if err := validate.Ledger(b.next); err != nil {
		b.log.Warn("some fingerprints will not load back", "err", err)
	}
	if err := ledger.Save(b.next, b.opts.LedgerPath); err != nil {
		return err
	}
	b.report.State = StateLedgerPersisted
	b.report.Summary = changeset.Summarize(b.prev, b.next)
	b.report.Included = b.set.Paths()

	if err := b.asm.Close(); err != nil {
		return err
	}
	b.report.State = StateArchiveFinalized
	b.log.Info("patch jar written", "path", b.asm.Path(), "entries", b.asm.Count())

	return b.convert(ctx)
}

// rewriteLoose rewrites every non-excluded loose module concurrently. Nothing
// is written back here; results are indexed like units.
func (b *build) rewriteLoose(ctx context.Context, units []source.Unit) ([]looseResult, error) {
	results := make([]looseResult, len(units))
	workers := b.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range units {
		m, ok := u.(*source.LooseModule)
		if !ok {
			continue
		}
		if reason := b.opts.Policy.Reason(m.Logical); reason != "" {
			results[i].excluded = reason
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := m.Read()
			if err != nil {
				return fmt.Errorf("read module %s: %w", m.Abs, err)
			}
			out, err := b.opts.Rewriter.Rewrite(data)
			if err != nil {
				var me *rewrite.MalformedModuleError
				if errors.As(err, &me) {
					me.Path = m.Abs
				}
				results[i].err = err
				return nil
			}
			results[i].data = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *build) commitLoose(m *source.LooseModule, r looseResult) error {
	switch {
	case r.excluded != "":
		b.report.Excluded++
		b.log.Debug("excluded", "module", m.Logical, "rule", r.excluded)
		return nil
	case r.err != nil:
		b.report.Failed++
		b.log.Info("skipping module", "path", m.Abs, "err", r.err)
		return nil
	}
	if !b.storable(m.Logical, m.Abs, r.data) {
		return nil
	}
	if err := m.Write(r.data); err != nil {
		return fmt.Errorf("write module %s: %w", m.Abs, err)
	}
	return b.record(m.Logical, r.data)
}

func (b *build) processArchive(a *source.ArchiveFile) error {
	b.log.Debug("rebuilding jar", "path", a.Abs)
	return archive.Rebuild(a.Abs, func(e archive.Entry) ([]byte, bool, error) {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".class") {
			return nil, false, nil
		}
		path := archive.SanitizeName(e.Name())
		if strings.HasPrefix(path, versionedPrefix) {
			b.log.Debug("versioned entry left as is", "module", path, "jar", a.Abs)
			return nil, false, nil
		}
		if reason := b.opts.Policy.Reason(path); reason != "" {
			b.report.Excluded++
			b.log.Debug("excluded", "module", path, "jar", a.Abs, "rule", reason)
			return nil, false, nil
		}
		data, err := e.Read()
		if err != nil {
			return nil, false, &archive.ArchiveIOError{Op: "read", Path: a.Abs + "!" + e.Name(), Err: err}
		}
		out, err := b.opts.Rewriter.Rewrite(data)
		if err != nil {
			b.report.Failed++
			b.log.Info("skipping module", "path", a.Abs+"!"+e.Name(), "err", err)
			return nil, false, nil
		}
		if !b.storable(path, a.Abs+"!"+e.Name(), out) {
			return nil, false, nil
		}
		if err := b.record(path, out); err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
}

// versionedPrefix holds multi-release overrides; their entry names never
// match the class they carry.
const versionedPrefix = "META-INF/versions/"

// storable reports whether a rewritten module could go into the patch under
// its logical path. Modules that could not are skipped like any other
// per-module failure, before the ledger learns about them.
func (b *build) storable(path, where string, data []byte) bool {
	if err := validate.Module(path, data); err != nil {
		b.report.Failed++
		b.log.Info("skipping module", "path", where, "err", err)
		return false
	}
	return true
}

// record fingerprints a rewritten module and appends it to the patch when it
// changed since the previous build. Only the first occurrence of a logical
// path counts.
func (b *build) record(path string, data []byte) error {
	b.report.Rewritten++
	hash := ledger.Hash(data)
	if _, seen := b.next.Get(path); seen {
		b.report.Duplicates++
		b.log.Warn("module seen twice, keeping the first", "module", path, "err", changeset.ErrDuplicate)
		return nil
	}
	b.next.Set(path, hash)
	if !changeset.Decide(b.prev, path, hash) {
		return nil
	}
	if err := b.set.Add(path); err != nil {
		return err
	}
	b.log.Debug("changed", "module", path, "hash", hash)
	return b.asm.Append(path, data)
}

func (b *build) convert(ctx context.Context) error {
	if b.asm.Count() == 0 {
		b.report.State = StateSkipped
		b.log.Info("no changed modules, nothing to convert")
		return nil
	}
	if err := validate.PatchJar(b.asm.Path()); err != nil {
		b.log.Warn("patch jar failed validation", "path", b.asm.Path(), "err", err)
	}
	if b.opts.Converter == nil {
		return nil
	}
	if err := b.opts.Converter.Convert(ctx, b.asm.Path(), b.opts.Output); err != nil {
		return err
	}
	if err := os.Remove(b.asm.Path()); err != nil {
		b.log.Warn("could not remove intermediate jar", "path", b.asm.Path(), "err", err)
	}
	b.report.State = StateConverted
	b.report.Output = b.opts.Output
	b.log.Info("patch converted", "output", b.opts.Output, "modules", b.asm.Count())
	return nil
}
