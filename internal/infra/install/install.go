// Package install registers the server's stdio entry in local MCP client
// configurations so assistants can launch it directly.
package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"ekamcp/internal/domain"
)

// Target identifies a supported MCP client configuration.
type Target string

const (
	// TargetClaude writes the Claude config.
	TargetClaude Target = "claude"
	// TargetCodex writes the Codex config.
	TargetCodex Target = "codex"
	// TargetGemini writes the Gemini config.
	TargetGemini Target = "gemini"
)

// ErrUnknownTarget indicates the target string is not supported.
var ErrUnknownTarget = errors.New("unknown install target")

// ParseTarget converts a raw string into a Target.
func ParseTarget(raw string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TargetClaude):
		return TargetClaude, nil
	case string(TargetCodex):
		return TargetCodex, nil
	case string(TargetGemini):
		return TargetGemini, nil
	default:
		return "", ErrUnknownTarget
	}
}

// ResolvePath returns the config file path for the given target.
func ResolvePath(target Target) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	switch target {
	case TargetClaude:
		return filepath.Join(home, ".claude.json"), nil
	case TargetCodex:
		return filepath.Join(home, ".codex", "config.toml"), nil
	case TargetGemini:
		return filepath.Join(home, ".gemini", "settings.json"), nil
	default:
		return "", ErrUnknownTarget
	}
}

// Options configures one install run.
type Options struct {
	Target      Target
	Credentials domain.Credentials
	// ServerName keys the entry in the client config. Defaults to the
	// MCP server name.
	ServerName string
	// Binary is the launch command. Defaults to the running executable.
	Binary string
	Logger *zap.Logger
}

// Install merges the server's stdio entry into the target client config,
// preserving every other registered server. Existing entries under the
// same name are replaced. Returns the path written.
//
// The entry carries the credential triple as launch args, so files created
// here are owner-only; existing client configs keep their modes.
func Install(opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if issues := opts.Credentials.Validate(); len(issues) > 0 {
		return "", fmt.Errorf("install: %s", strings.Join(issues, "; "))
	}
	name := strings.TrimSpace(opts.ServerName)
	if name == "" {
		name = domain.ServerName
	}
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve executable: %w", err)
		}
		binary = executable
	}

	path, err := ResolvePath(opts.Target)
	if err != nil {
		return "", err
	}

	entry := launchEntry(binary, opts.Credentials)
	switch opts.Target {
	case TargetClaude, TargetGemini:
		err = mergeJSONConfig(path, name, entry)
	case TargetCodex:
		err = mergeTOMLConfig(path, name, entry)
	default:
		err = ErrUnknownTarget
	}
	if err != nil {
		return "", err
	}

	logger.Info("mcp client entry installed",
		zap.String("target", string(opts.Target)),
		zap.String("path", path),
		zap.String("server", name),
	)
	return path, nil
}

// launchEntry assembles the stdio launch table: the command plus the
// credential flags the server requires at startup.
func launchEntry(binary string, creds domain.Credentials) map[string]any {
	return map[string]any{
		"command": binary,
		"args": []string{
			"--eka-api-host", creds.Host,
			"--client-id", creds.ClientID,
			"--client-secret", creds.ClientSecret,
		},
	}
}

func mergeJSONConfig(path, name string, entry map[string]any) error {
	payload := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Fresh config.
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}

	servers, err := configTable(payload, "mcpServers")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	servers[name] = entry
	payload["mcpServers"] = servers

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeConfig(path, append(encoded, '\n'))
}

func mergeTOMLConfig(path, name string, entry map[string]any) error {
	payload := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Fresh config.
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}

	servers, err := configTable(payload, "mcp_servers")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	servers[name] = entry
	payload["mcp_servers"] = servers

	encoded, err := toml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeConfig(path, encoded)
}

// configTable returns the named table from the config, creating it when
// absent. A present-but-non-table value is a config we refuse to rewrite.
func configTable(payload map[string]any, key string) (map[string]any, error) {
	value, ok := payload[key]
	if !ok || value == nil {
		return map[string]any{}, nil
	}
	table, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object map", key)
	}
	return table, nil
}

func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	// 0600 applies on create only; an existing client config keeps its mode.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
