// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

// Outcome represents the terminal disposition of a BulkRequest.
type Outcome int

const (
	// Completed indicates the search cluster answered with a success status.
	// The result carries the raw response body.
	Completed Outcome = iota

	// RetriesExhausted indicates every attempt failed with a transient error
	// (connection failure, timeout, 408, 429, or a 5xx status). The result
	// carries the last error instead of a response body.
	RetriesExhausted

	// Rejected indicates the search cluster answered with a non-transient
	// failure status (a 4xx other than 408 or 429). No retry is performed.
	Rejected

	// Invalid indicates the request envelope failed validation and was never
	// executed. Produced only when a correlation id could be recovered.
	Invalid
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case RetriesExhausted:
		return "RetriesExhausted"
	case Rejected:
		return "Rejected"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// wireStatus returns the status label used in the result envelope and in
// metrics. Unknown outcomes map to "unknown" rather than failing encode.
func (o Outcome) wireStatus() string {
	switch o {
	case Completed:
		return "success"
	case RetriesExhausted:
		return "retries_exhausted"
	case Rejected:
		return "rejected"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}
