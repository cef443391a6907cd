package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Size limits for data arriving from script contexts (in bytes)
const (
	MaxPayloadSize = 1 * 1024 * 1024 // envelope data
	MaxDepth       = 20              // payload nesting
)

var extensionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// ValidateExtensionID checks the identifier an attaching context claims
func ValidateExtensionID(id string) error {
	if !extensionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid extension id: %q", id)
	}
	return nil
}

// ValidatePayload bounds the size and nesting of an envelope payload.
// Oversized or deeply nested payloads are the sender's bug and are
// rejected before they reach a provider.
func ValidatePayload(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unserializable payload: %w", err)
	}
	if len(raw) > MaxPayloadSize {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(raw), MaxPayloadSize)
	}
	return checkDepth(data, 0)
}

func checkDepth(data interface{}, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("payload nesting depth exceeds maximum %d", MaxDepth)
	}

	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, depth+1); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
