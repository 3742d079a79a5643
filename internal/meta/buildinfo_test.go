package meta

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectGroovy(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "build.gradle", `
apply plugin: 'com.android.application'
android {
    compileSdkVersion 28
    buildToolsVersion "28.0.3"
    defaultConfig {
        applicationId "com.acme.app"
    }
}
`)
	write(t, dir, "src/main/AndroidManifest.xml", `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.acme">
    <application android:name=".App" android:label="demo"/>
</manifest>
`)
	inf := Detect(dir)
	if inf.BuildToolsVersion != "28.0.3" {
		t.Fatalf("build tools: %q", inf.BuildToolsVersion)
	}
	if inf.ApplicationID != "com.acme.app" {
		t.Fatalf("application id: %q", inf.ApplicationID)
	}
	if inf.ApplicationClass != "com.acme.App" {
		t.Fatalf("application class: %q", inf.ApplicationClass)
	}
}

func TestDetectKotlinDSL(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "build.gradle.kts", `
android {
    namespace = "org.sample"
    buildToolsVersion = "30.0.3"
    defaultConfig {
        applicationId = "org.sample.release"
    }
}
`)
	write(t, dir, "src/main/AndroidManifest.xml", `<manifest xmlns:android="http://schemas.android.com/apk/res/android">
  <application android:name="SampleApp"/>
</manifest>`)
	inf := Detect(dir)
	if inf.BuildToolsVersion != "30.0.3" || inf.Namespace != "org.sample" {
		t.Fatalf("unexpected %+v", inf)
	}
	if inf.ApplicationClass != "org.sample.SampleApp" {
		t.Fatalf("application class: %q", inf.ApplicationClass)
	}
}

func TestDetectEmpty(t *testing.T) {
	if inf := Detect(t.TempDir()); inf != (Info{}) {
		t.Fatalf("expected zero Info, got %+v", inf)
	}
}

func TestQualify(t *testing.T) {
	cases := map[[2]string]string{
		{"", "a.b"}:        "",
		{".App", "a.b"}:    "a.b.App",
		{"App", "a.b"}:     "a.b.App",
		{"x.y.App", "a.b"}: "x.y.App",
		{"App", ""}:        "App",
	}
	for in, want := range cases {
		if got := qualify(in[0], in[1]); got != want {
			t.Errorf("qualify(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
