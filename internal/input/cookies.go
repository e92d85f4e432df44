package input

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCookies reads a JSON object file mapping cookie names to values.
// These become the authenticated session sent with every crawling probe.
func LoadCookies(filePath string) (map[string]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file %s: %w", filePath, err)
	}

	var cookies map[string]string
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("cookie file %s is not a JSON object of name/value pairs: %w", filePath, err)
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	return cookies, nil
}
