// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package validation

import (
	"reflect"
	"strings"
)

// tagName reports fields by their koanf or json key so messages match the
// names users write in their files.
func tagName(fld reflect.StructField) string {
	for _, tag := range []string{"koanf", "json"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}
