// Package meta detects Android build metadata of an application module.
//
// Goals:
//   - Best-effort parsing: tolerate partial/absent files
//   - Only fill what configuration left empty
package meta

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Info is what the patcher can learn from the module's build files.
type Info struct {
	BuildToolsVersion string // e.g. "28.0.3"
	ApplicationID     string // e.g. "com.acme.app"
	Namespace         string // Gradle namespace, or the manifest package
	ApplicationClass  string // fully qualified <application android:name>
}

// Detect probes the module directory root (the one holding build.gradle and
// src/main/AndroidManifest.xml).
func Detect(root string) Info {
	absRoot, _ := filepath.Abs(root)
	var inf Info
	if p := firstExisting(absRoot, "build.gradle", "build.gradle.kts"); p != "" {
		detectGradle(p, &inf)
	}
	if p := firstExisting(absRoot, filepath.Join("src", "main", "AndroidManifest.xml"), "AndroidManifest.xml"); p != "" {
		detectManifest(p, &inf)
	}
	return inf
}

// ------------------------------ Gradle ---------------------------------------

var (
	reBuildTools = regexp.MustCompile(`(?m)^\s*buildToolsVersion\s*(?:=\s*)?\(?\s*["']([^"']+)["']`)
	reAppID      = regexp.MustCompile(`(?m)^\s*applicationId\s*(?:=\s*)?\(?\s*["']([^"']+)["']`)
	reNamespace  = regexp.MustCompile(`(?m)^\s*namespace\s*(?:=\s*)?\(?\s*["']([^"']+)["']`)
)

func detectGradle(path string, inf *Info) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	text := string(b)
	if m := reBuildTools.FindStringSubmatch(text); m != nil {
		inf.BuildToolsVersion = m[1]
	}
	if m := reAppID.FindStringSubmatch(text); m != nil {
		inf.ApplicationID = m[1]
	}
	if m := reNamespace.FindStringSubmatch(text); m != nil {
		inf.Namespace = m[1]
	}
}

// ------------------------------ Manifest -------------------------------------

type manifestXML struct {
	XMLName     xml.Name `xml:"manifest"`
	Package     string   `xml:"package,attr"`
	Application struct {
		Name string `xml:"http://schemas.android.com/apk/res/android name,attr"`
	} `xml:"application"`
}

func detectManifest(path string, inf *Info) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var m manifestXML
	if err := xml.Unmarshal(b, &m); err != nil {
		return
	}
	if inf.Namespace == "" {
		inf.Namespace = strings.TrimSpace(m.Package)
	}
	inf.ApplicationClass = qualify(strings.TrimSpace(m.Application.Name), firstNonEmpty(inf.Namespace, inf.ApplicationID))
}

// qualify expands ".App" and "App" against pkg the way the manifest merger does.
func qualify(name, pkg string) string {
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "."):
		return pkg + name
	case !strings.Contains(name, ".") && pkg != "":
		return pkg + "." + name
	}
	return name
}

// ---------------------------- helpers ---------------------------------------

func firstExisting(root string, names ...string) string {
	for _, n := range names {
		p := filepath.Join(root, n)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}
