// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"errors"
	"fmt"
	"strings"
)

// OffsetReset specifies where consumption begins when the group has no
// committed offset for a request topic partition.
type OffsetReset string

const (
	// OffsetResetLatest starts from the newest records (default). A fresh
	// group skips any backlog produced before it existed.
	OffsetResetLatest OffsetReset = "latest"

	// OffsetResetEarliest starts from the oldest retained records.
	OffsetResetEarliest OffsetReset = "earliest"
)

var offsetResetTypes map[OffsetReset]struct{}
var offsetResetList []string

func init() {
	list := []OffsetReset{
		OffsetResetLatest,
		OffsetResetEarliest,
	}

	offsetResetTypes = make(map[OffsetReset]struct{})
	for _, o := range list {
		offsetResetTypes[o] = struct{}{}
		offsetResetList = append(offsetResetList, string(o))
	}
}

// validateOffsetReset validates the OffsetReset enum value.
func validateOffsetReset(reset OffsetReset) error {
	if reset == "" {
		return nil
	}

	_, ok := offsetResetTypes[reset]
	if ok {
		return nil
	}

	list := strings.Join(offsetResetList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("offset reset '%s' is invalid: must be %s or empty", reset, list))
}
