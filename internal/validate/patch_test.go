package validate

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"class-patcher/internal/ledger"
	"class-patcher/internal/testutil"
)

func TestPatchJarValid(t *testing.T) {
	jar := testutil.WriteJar(t, filepath.Join(t.TempDir(), "patchClass.jar"),
		testutil.Entry{Name: "com/app/Foo.class", Data: testutil.SampleBytes("com/app/Foo")},
		testutil.Entry{Name: "com/app/Bar.class", Data: testutil.SampleBytes("com/app/Bar")},
	)
	if err := PatchJar(jar); err != nil {
		t.Fatalf("PatchJar: %v", err)
	}
}

func TestPatchJarAggregatesIssues(t *testing.T) {
	foo := testutil.SampleBytes("com/app/Foo")
	jar := testutil.WriteJar(t, filepath.Join(t.TempDir(), "patchClass.jar"),
		testutil.Entry{Name: "com/app/Foo.class", Data: foo},
		testutil.Entry{Name: "com/app/Foo.class", Data: foo},
		testutil.Entry{Name: "com/app/Other.class", Data: foo},
		testutil.Entry{Name: "README.txt", Data: []byte("hi")},
		testutil.Entry{Name: "com/app/Broken.class", Data: []byte("nope")},
	)
	err := PatchJar(jar)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"entries[1] (com/app/Foo.class): duplicate entry",
		"entries[2] (com/app/Other.class): holds class com/app/Foo",
		"entries[3] (README.txt): not a class file",
		"entries[4] (com/app/Broken.class):",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestPatchJarUnreadable(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "patchClass.jar", []byte("not a zip"))
	if err := PatchJar(path); err == nil {
		t.Fatal("expected error for a non-zip file")
	}
}

func TestModule(t *testing.T) {
	foo := testutil.SampleBytes("com/app/Foo")
	if err := Module("com/app/Foo.class", foo); err != nil {
		t.Fatalf("Module: %v", err)
	}
	cases := map[string]struct {
		path string
		data []byte
		want string
	}{
		"versioned entry": {"META-INF/versions/9/com/app/Foo.class", foo, "holds class com/app/Foo"},
		"prefixed path":   {"classes/com/app/Foo.class", foo, "holds class com/app/Foo"},
		"not a class":     {"com/app/Foo.txt", foo, "not a class file"},
		"undecodable":     {"com/app/Foo.class", []byte("nope"), "module (com/app/Foo.class):"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Module(tc.path, tc.data)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("want ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("missing %q in:\n%s", tc.want, err)
			}
		})
	}
}

func TestLedger(t *testing.T) {
	l := ledger.New()
	l.Set("com/app/Foo.class", ledger.Hash([]byte("foo")))
	if err := Ledger(l); err != nil {
		t.Fatalf("Ledger: %v", err)
	}

	l.Set("com/app/a:b.class", ledger.Hash([]byte("x")))
	l.Set(`com\app\Win.class`, "ABC")
	l.Set("com/../Up.class", ledger.Hash([]byte("up")))
	err := Ledger(l)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"ledger (com/app/a:b.class): path must not contain ':'",
		`ledger (com\app\Win.class): path must use forward slashes`,
		`hash must be 32 lowercase hex chars (md5), got "ABC"`,
		"ledger (com/../Up.class): path must not contain '..' segments",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}
