package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ekamcp/internal/domain"
)

const fileHeader = `# ekamcp runtime settings. Every key is optional; omitted keys use the
# built-in defaults. Credentials are never read from this file.
`

// WriteDefault renders the default settings to path. It refuses to clobber
// an existing file so a hand-edited one survives re-running init.
func WriteDefault(path string) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	defaults := domain.DefaultSettings()
	body, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append([]byte(fileHeader), body...), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
