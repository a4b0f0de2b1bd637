// Package slidedir owns the on-disk layout of rendered slides:
// {root}/{userID}/{presentationID}/slide_{n}.png.
package slidedir

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spherical/deck-narrator/internal/domain"
)

// DefaultURLPrefix is the public path under which slide images are served.
const DefaultURLPrefix = "/uploads/slides"

var slideNumberPattern = regexp.MustCompile(`(\d+)`)

// Manager maps (user, presentation) keys to output directories.
type Manager struct {
	root      string
	urlPrefix string
}

// NewManager creates a manager rooted at root. The root is created if missing.
func NewManager(root, urlPrefix string) (*Manager, error) {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.IOError("failed to resolve slides directory", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, domain.IOError("failed to create slides directory", err)
	}
	return &Manager{
		root:      abs,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

// Root returns the absolute root directory.
func (m *Manager) Root() string {
	return m.root
}

// URLPrefix returns the public path prefix of slide images.
func (m *Manager) URLPrefix() string {
	return m.urlPrefix
}

// Dir is a prepared output directory of one presentation.
type Dir struct {
	UserID         string
	PresentationID string
	Path           string
}

// Locator returns the root-relative locator of a file in the directory.
func (d *Dir) Locator(name string) string {
	return path.Join(d.UserID, d.PresentationID, name)
}

// Prepare deletes any previous output of the key and creates an empty
// directory for it. Distinct keys may be prepared concurrently; callers
// serialize preparations of the same key.
func (m *Manager) Prepare(userID, presentationID string) (*Dir, error) {
	dirPath, err := m.dirPath(userID, presentationID)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(dirPath); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to clear %s", dirPath), err)
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create %s", dirPath), err)
	}

	return &Dir{UserID: userID, PresentationID: presentationID, Path: dirPath}, nil
}

// Remove deletes the output directory of the key. Missing directories are not an error.
func (m *Manager) Remove(userID, presentationID string) error {
	dirPath, err := m.dirPath(userID, presentationID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dirPath); err != nil {
		return domain.IOError(fmt.Sprintf("failed to remove %s", dirPath), err)
	}
	return nil
}

// ExternalPath maps a locator to the public path it is served under. Each
// segment is path-escaped.
func (m *Manager) ExternalPath(locator string) string {
	segments := strings.Split(strings.TrimLeft(locator, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return m.urlPrefix + "/" + strings.Join(segments, "/")
}

// LocatorFromPath is the inverse of ExternalPath: it maps an escaped request
// path below the URL prefix back to a locator.
func (m *Manager) LocatorFromPath(escapedPath string) (string, error) {
	rest, ok := strings.CutPrefix(escapedPath, m.urlPrefix+"/")
	if !ok {
		return "", domain.ValidationError(fmt.Sprintf("path %q is outside %s", escapedPath, m.urlPrefix), nil)
	}
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			return "", domain.ValidationError(fmt.Sprintf("invalid slide path %q", escapedPath), err)
		}
		segments[i] = unescaped
	}
	return strings.Join(segments, "/"), nil
}

// Resolve maps a locator to a file path inside the root. Locators escaping
// the root are rejected.
func (m *Manager) Resolve(locator string) (string, error) {
	cleaned := path.Clean("/" + locator)
	if cleaned == "/" {
		return "", domain.ValidationError("empty slide locator", nil)
	}
	full := filepath.Join(m.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(m.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", domain.ValidationError(fmt.Sprintf("invalid slide locator %q", locator), err)
	}
	return full, nil
}

// List returns the slide file names of a prepared key ordered by slide number.
func (m *Manager) List(userID, presentationID string) ([]string, error) {
	dirPath, err := m.dirPath(userID, presentationID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", dirPath), err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return slideNumber(names[i]) < slideNumber(names[j])
	})
	return names, nil
}

func (m *Manager) dirPath(userID, presentationID string) (string, error) {
	if err := ValidateKey("user id", userID); err != nil {
		return "", err
	}
	if err := ValidateKey("presentation id", presentationID); err != nil {
		return "", err
	}
	return filepath.Join(m.root, userID, presentationID), nil
}

// ValidateKey checks that a key component is usable as one path segment.
func ValidateKey(kind, v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return domain.ValidationError(kind+" cannot be empty", nil)
	case v == "." || v == "..":
		return domain.ValidationError(fmt.Sprintf("invalid %s %q", kind, v), nil)
	case strings.ContainsAny(v, `/\`+"\x00"):
		return domain.ValidationError(fmt.Sprintf("%s %q must not contain path separators", kind, v), nil)
	}
	return nil
}

// slideNumber extracts the first number in a file name, or -1.
func slideNumber(name string) int {
	m := slideNumberPattern.FindString(name)
	if m == "" {
		return -1
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return -1
	}
	return n
}
