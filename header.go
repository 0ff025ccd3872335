// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"strconv"
	"strings"
)

// extractResultField extracts field values from a BulkResult for use in Kafka
// record headers. Supports two categories of field extraction:
//
//  1. Standard result fields: Direct field names like "CorrelationID",
//     "Target", "Status", "StatusCode", "Attempts".
//     Returns a single-element slice.
//
//  2. Metadata: Syntax "Meta.fieldName" extracts specific entries of the
//     metadata echoed from the request.
//     Example: "Meta.session_id" extracts res.Meta["session_id"].
//
// Returns nil if:
//   - res is nil
//   - fieldName is not recognized
//   - fieldName matches the Meta. pattern but the value doesn't exist
//   - The field exists but is empty
func extractResultField(res *BulkResult, fieldName string) []string {
	if res == nil {
		return nil
	}

	if got, ok := extractStandardFields(res, fieldName); ok {
		return got
	}

	if got, ok := extractMetaFields(res, fieldName); ok {
		return got
	}

	return nil
}

// extractStandardFields extracts built-in BulkResult field values by field name.
//
// Supported field names (case-sensitive):
//   - "CorrelationID": The request correlation id
//   - "Target": The index or alias the request ran against
//   - "Status": The wire status label ("success", "retries_exhausted", ...)
//   - "StatusCode": The last HTTP status from the search cluster
//   - "Attempts": The number of attempts made
//
// Returns:
//   - ([]string{value}, true) if fieldName matches a standard field and has a value
//   - (nil, true) if fieldName matches a standard field but the value is unset
//   - (nil, false) if fieldName doesn't match any standard field
func extractStandardFields(res *BulkResult, fieldName string) ([]string, bool) {
	switch fieldName {
	case "CorrelationID":
		return []string{res.CorrelationID}, true
	case "Target":
		return []string{res.Target}, true
	case "Status":
		return []string{res.Outcome.wireStatus()}, true
	case "StatusCode":
		if res.StatusCode == 0 {
			return nil, true
		}
		return []string{strconv.Itoa(res.StatusCode)}, true
	case "Attempts":
		return []string{strconv.Itoa(res.Attempts)}, true
	}

	return nil, false
}

// extractMetaFields extracts metadata values from a BulkResult using "Meta.X" syntax.
//
// Syntax: "Meta.fieldName" where fieldName is the key in the res.Meta map.
// JSON string values are unquoted; other values are rendered as raw JSON text.
// The key name is trimmed of surrounding whitespace.
//
// Returns:
//   - ([]string{value}, true) if fieldName matches the "Meta." prefix and the value exists and is non-empty
//   - (nil, true) if fieldName matches the "Meta." prefix but the value doesn't exist or is empty
//   - (nil, false) if fieldName doesn't match the "Meta." prefix
func extractMetaFields(res *BulkResult, fieldName string) ([]string, bool) {
	// Support "Meta.X" syntax for extracting specific metadata fields
	if strings.HasPrefix(fieldName, "Meta.") {
		if res.Meta != nil {
			targetKey := strings.TrimSpace(fieldName[5:]) // Extract key after "Meta."

			if value, ok := metaString(res.Meta, targetKey); ok && value != "" {
				return []string{value}, true
			}
		}
		return nil, true
	}

	return nil, false
}

// validResultFieldNames contains all valid result field names for header extraction.
// This is used for validation to catch typos and invalid field references early.
var validResultFieldNames = map[string]struct{}{
	"CorrelationID": {},
	"Target":        {},
	"Status":        {},
	"StatusCode":    {},
	"Attempts":      {},
}

// isValidResultFieldReference validates a result.* header field reference.
// Returns true if the reference is valid (standard field or Meta.*).
// Returns false for invalid field names (catches typos early).
func isValidResultFieldReference(value string) bool {
	// Not a result field reference
	if len(value) <= 7 || value[:7] != "result." {
		return true
	}

	fieldName := value[7:] // Remove "result." prefix

	// Check if it's a Meta.* reference (always valid)
	if strings.HasPrefix(fieldName, "Meta.") {
		return true
	}

	// Check if it's a valid standard result field
	_, ok := validResultFieldNames[fieldName]
	return ok
}
