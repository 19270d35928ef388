package catalog

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/archi3d/archi3d/pkg/archtype"
)

// maxUsedImages is the cap §4.3's image-selection rule enforces.
const maxUsedImages = 6

var folderNamePattern = regexp.MustCompile(`^(\d+)(?: - (.+))?$`)

// parseFolderName splits a dataset sub-directory name into
// (productID, variant). variant defaults to "default" when absent.
// ok is false for names that don't match the convention at all.
func parseFolderName(name string) (productID, variant string, ok bool) {
	m := folderNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	productID = m[1]
	variant = m[2]
	if variant == "" {
		variant = "default"
	}
	return productID, variant, true
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

var taggedSuffixPattern = regexp.MustCompile(`(?i)_([a-f])$`)

// selectImages applies the §4.3 ordered, capped-at-6 image-selection
// rule over the filenames found in an item's images/ directory.
// Selected is workspace-relative-ready basenames, in final order;
// tooMany/none report which issues to emit.
func selectImages(names []string) (selected []string, tooMany, none bool) {
	type candidate struct {
		name   string
		letter byte // 0 if untagged
	}

	var candidates []candidate
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if !imageExts[ext] {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		c := candidate{name: name}
		if m := taggedSuffixPattern.FindStringSubmatch(stem); m != nil {
			c.letter = strings.ToUpper(m[1])[0]
		}
		candidates = append(candidates, c)
	}

	var tagged, untagged []candidate
	for _, c := range candidates {
		if c.letter != 0 {
			tagged = append(tagged, c)
		} else {
			untagged = append(untagged, c)
		}
	}
	sort.SliceStable(tagged, func(i, j int) bool { return tagged[i].letter < tagged[j].letter })
	sort.SliceStable(untagged, func(i, j int) bool {
		return strings.ToLower(untagged[i].name) < strings.ToLower(untagged[j].name)
	})

	ordered := append(tagged, untagged...)
	for _, c := range ordered {
		selected = append(selected, c.name)
	}

	if len(selected) == 0 {
		return nil, false, true
	}
	if len(selected) > maxUsedImages {
		return selected[:maxUsedImages], true, false
	}
	return selected, false, false
}

var gtExts = []string{".glb", ".fbx"} // preference order

// selectGroundTruth applies the §4.3 ground-truth-selection rule over
// the filenames found in an item's gt/ directory.
func selectGroundTruth(names []string) (chosen string, missing, multiple bool) {
	byExt := make(map[string][]string)
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range gtExts {
			if ext == want {
				byExt[want] = append(byExt[want], name)
			}
		}
	}

	for _, ext := range gtExts {
		cands := byExt[ext]
		if len(cands) == 0 {
			continue
		}
		sort.Strings(cands)
		return cands[0], false, len(cands) > 1
	}
	return "", true, false
}

// scannedItem is one dataset sub-directory's raw scan result, before
// enrichment is merged in.
type scannedItem struct {
	ProductID    string
	Variant      string
	DatasetDir   string // workspace-relative POSIX
	ImagePaths   []string
	GTObjectPath string
	Issues       []archtype.Issue
}

func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
