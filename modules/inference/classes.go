package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadClasses reads a JSON array of class names. A missing file yields
// placeholder names class_0..class_{fallback-1} and found=false.
func LoadClasses(path string, fallback int) (classes []string, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return placeholderClasses(fallback), false, nil
		}
		return nil, false, fmt.Errorf("failed to read classes file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, false, fmt.Errorf("failed to parse classes file %s: %w", path, err)
	}
	if len(classes) == 0 {
		return nil, false, fmt.Errorf("classes file %s is empty", path)
	}
	return classes, true, nil
}

func placeholderClasses(n int) []string {
	classes := make([]string, n)
	for i := range classes {
		classes[i] = fmt.Sprintf("class_%d", i)
	}
	return classes
}
