package ingest

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxStoreNameLength matches the worksheet name limit of XLSX files
const MaxStoreNameLength = 31

var (
	storeNumberPattern = regexp.MustCompile(`(?i)store\s*[_-]?(\d+)`)
	separatorPattern   = regexp.MustCompile(`[\s_\-]+`)
)

// StoreNameFromPath derives the store a file belongs to. Files in a sub-folder of dataDir
// belong to the folder; files directly in dataDir are named by their file stem.
// "store_3" style names become "Store3", anything else is title-cased.
func StoreNameFromPath(dataDir, path string) string {
	parent := filepath.Dir(path)
	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if filepath.Clean(parent) != filepath.Clean(dataDir) {
		source = filepath.Base(parent)
	}
	return NormalizeStoreName(source)
}

// NormalizeStoreName turns a raw folder or file name into a display store name
func NormalizeStoreName(raw string) string {
	if m := storeNumberPattern.FindStringSubmatch(raw); m != nil {
		return "Store" + m[1]
	}

	name := strings.TrimSpace(separatorPattern.ReplaceAllString(raw, " "))
	name = cases.Title(language.English).String(name)
	if name == "" {
		name = "Store"
	}
	if r := []rune(name); len(r) > MaxStoreNameLength {
		name = string(r[:MaxStoreNameLength])
	}
	return name
}

// storeFolderName is the on-disk folder used when splitting a flat store export
func storeFolderName(raw string) string {
	if m := storeNumberPattern.FindStringSubmatch(raw); m != nil {
		return "store" + m[1]
	}
	return strings.ToLower(strings.ReplaceAll(raw, " ", "_"))
}
