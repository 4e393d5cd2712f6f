package scene

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cm68/tless-detect/internal/apperr"
)

// TemplateEntry is one object class's source directory, parsed from a
// templates list file (§4.10, supplementing original_source's flat
// per-object directory layout).
type TemplateEntry struct {
	ObjectID int
	Dir      string
}

var objectIDPattern = regexp.MustCompile(`(\d+)`)

// ParseTemplateList reads a newline-delimited list of template
// directories, one per object class, matching Classifier::train's
// templatesListPath argument. Blank lines and lines starting with '#'
// are ignored. The object id is parsed from the trailing digits of the
// directory's base name (e.g. "data/obj_01" -> 1).
func ParseTemplateList(listPath string) ([]TemplateEntry, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, listPath, err)
	}
	defer f.Close()

	var entries []TemplateEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := objectIDFromDir(line)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, line, err)
		}
		entries = append(entries, TemplateEntry{ObjectID: id, Dir: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, listPath, err)
	}
	return entries, nil
}

func objectIDFromDir(dir string) (int, error) {
	base := filepath.Base(dir)
	matches := objectIDPattern.FindAllString(base, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no numeric object id in directory name %q", base)
	}
	return strconv.Atoi(matches[len(matches)-1])
}

// ViewIndices returns the sorted list of numbered template view
// indices present in dir, one per "<idx>_color.png" file.
func ViewIndices(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, dir, err)
	}

	var indices []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, "_color.png") {
			continue
		}
		idxStr := strings.TrimSuffix(name, "_color.png")
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}

type bboxFile struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ViewPaths returns the color path, depth path, and bounding box for
// view idx inside dir, reading "<idx>_bbox.json" for the box.
func ViewPaths(dir string, idx int) (colorPath, depthPath string, bbox image.Rectangle, err error) {
	colorPath = filepath.Join(dir, fmt.Sprintf("%d_color.png", idx))
	depthPath = filepath.Join(dir, fmt.Sprintf("%d_depth.png", idx))
	bboxPath := filepath.Join(dir, fmt.Sprintf("%d_bbox.json", idx))

	data, readErr := os.ReadFile(bboxPath)
	if readErr != nil {
		return "", "", image.Rectangle{}, apperr.Wrap(apperr.IOFailure, bboxPath, readErr)
	}
	var b bboxFile
	if jsonErr := json.Unmarshal(data, &b); jsonErr != nil {
		return "", "", image.Rectangle{}, apperr.Wrap(apperr.InvalidInput, bboxPath, jsonErr)
	}
	bbox = image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
	return colorPath, depthPath, bbox, nil
}
