package badger

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// LoadEnvFile copies provider credentials from a .env file into the KV store.
// Lines are KEY=value with optional quotes; blank lines and # comments are
// ignored. EODHD_API_KEY is stored as "eodhd_api_key", which is the key the
// credential resolver reads. A missing file is not an error.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) (int, error) {
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		m.logger.Debug().Str("file", filePath).Msg(".env file does not exist, skipping")
		return 0, nil
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to open .env file")
		return 0, nil
	}
	defer file.Close()

	loaded := 0
	skipped := 0
	lineNum := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			m.logger.Warn().Str("file", filePath).Int("line", lineNum).Msg("Invalid line format, expected KEY=value")
			skipped++
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := unquote(strings.TrimSpace(parts[1]))
		if key == "" || value == "" {
			skipped++
			continue
		}

		if err := m.kv.Set(ctx, key, value, "Loaded from .env file"); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable from .env")
			skipped++
			continue
		}
		loaded++
	}

	if err := scanner.Err(); err != nil {
		return loaded, err
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Finished loading variables from .env file")

	return loaded, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
