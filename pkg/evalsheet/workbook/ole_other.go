//go:build !windows

package workbook

import "fmt"

func openOLE(string) (Workbook, func(), error) {
	return nil, func() {}, fmt.Errorf("%w: %s requires Windows with Excel installed", ErrBackendUnavailable, BackendOLE)
}
