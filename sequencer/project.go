package sequencer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-bordl/config"
)

// ErrNoSaves is returned when a project has nothing to load.
var ErrNoSaves = errors.New("no saves found")

const saveTimeFormat = "2006-01-02_15-04-05"

// SaveInfo represents a saved project file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Store keeps projects as folders of timestamped documents.
type Store struct {
	Dir string
	Now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// DefaultStore returns the store under the config directory.
func DefaultStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(dir, "projects")), nil
}

// ProjectDir returns the path to a specific project
func (st *Store) ProjectDir(projectName string) string {
	return filepath.Join(st.Dir, projectName)
}

// ListProjects returns all project folder names
func (st *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first
func (st *Store) ListSaves(projectName string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(st.ProjectDir(projectName))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, ok := parseSaveName(entry.Name())
		if !ok {
			continue
		}
		saves = append(saves, info)
	}

	sort.Slice(saves, func(i, j int) bool {
		if saves[i].Timestamp.Equal(saves[j].Timestamp) {
			return saves[i].Filename > saves[j].Filename
		}
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})

	return saves, nil
}

// parseSaveName reads 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.yaml
func parseSaveName(filename string) (SaveInfo, bool) {
	ext := filepath.Ext(filename)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(filename, ext)
	if len(base) < len(saveTimeFormat) {
		return SaveInfo{}, false
	}
	ts, err := time.Parse(saveTimeFormat, base[:len(saveTimeFormat)])
	if err != nil {
		return SaveInfo{}, false
	}
	name := ""
	if rest := base[len(saveTimeFormat):]; len(rest) > 1 && rest[0] == '_' {
		name = rest[1:]
	}
	return SaveInfo{Filename: filename, Name: name, Timestamp: ts}, true
}

// SaveProject writes doc as a new timestamped JSON save and returns its filename
func (st *Store) SaveProject(projectName string, doc *Document) (string, error) {
	return st.SaveProjectAs(projectName, doc, ".json")
}

// SaveProjectAs is SaveProject with an explicit extension (.json or .yaml)
func (st *Store) SaveProjectAs(projectName string, doc *Document, ext string) (string, error) {
	if projectName == "" {
		projectName = "untitled"
	}
	dir := st.ProjectDir(projectName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	filename := st.Now().Format(saveTimeFormat) + ext
	data, err := Encode(filename, doc)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// LoadProject loads a specific save (or most recent if filename empty)
func (st *Store) LoadProject(projectName, filename string) (*Document, error) {
	if filename == "" {
		saves, err := st.ListSaves(projectName)
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, fmt.Errorf("project %s: %w", projectName, ErrNoSaves)
		}
		filename = saves[0].Filename
	}
	return ReadDocument(filepath.Join(st.ProjectDir(projectName), filename))
}

// ReadDocument loads a document file of either encoding
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// CreateProject creates a new empty project folder
func (st *Store) CreateProject(name string) error {
	return os.MkdirAll(st.ProjectDir(name), 0755)
}

// DeleteSave deletes a specific save file
func (st *Store) DeleteSave(projectName, filename string) error {
	return os.Remove(filepath.Join(st.ProjectDir(projectName), filename))
}

// RenameSave renames a save file (changes the name part, keeps timestamp)
func (st *Store) RenameSave(projectName, oldFilename, newName string) (string, error) {
	info, ok := parseSaveName(oldFilename)
	if !ok {
		return "", fmt.Errorf("invalid save filename %q", oldFilename)
	}
	ext := filepath.Ext(oldFilename)
	newFilename := info.Timestamp.Format(saveTimeFormat) + ext
	if newName != "" {
		newFilename = info.Timestamp.Format(saveTimeFormat) + "_" + sanitizeFilename(newName) + ext
	}

	dir := st.ProjectDir(projectName)
	if err := os.Rename(filepath.Join(dir, oldFilename), filepath.Join(dir, newFilename)); err != nil {
		return "", err
	}
	return newFilename, nil
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	return strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	).Replace(name)
}

// DeleteProject deletes entire project folder
func (st *Store) DeleteProject(name string) error {
	return os.RemoveAll(st.ProjectDir(name))
}

// RenameProject renames a project folder
func (st *Store) RenameProject(oldName, newName string) error {
	return os.Rename(st.ProjectDir(oldName), st.ProjectDir(newName))
}
