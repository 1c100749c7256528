package evalsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
)

// LoadInput reads an evaluation descriptor from a JSON file. Missing
// fields decode to their zero values.
func LoadInput(path string) (*models.Evaluation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, err
	}
	return ParseInput(data)
}

// ParseInput decodes an evaluation descriptor.
func ParseInput(data []byte) (*models.Evaluation, error) {
	var ev models.Evaluation
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &ev, nil
}

func checkExists(path string, notFound error) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", notFound, path)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", notFound, path)
	}
	return nil
}
