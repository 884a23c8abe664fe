//go:build windows

package cli

import "os"

func writeFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
