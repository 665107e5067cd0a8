// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import "strings"

// Colors is the palette taggers choose dominant colors from.
var Colors = []string{
	"black",
	"blue",
	"brown",
	"gold",
	"gray",
	"green",
	"orange",
	"pink",
	"purple",
	"red",
	"silver",
	"teal",
	"white",
	"yellow",
}

// colorAliases maps common variants onto the palette.
var colorAliases = map[string]string{
	"grey":      "gray",
	"navy":      "blue",
	"cyan":      "teal",
	"turquoise": "teal",
	"violet":    "purple",
	"magenta":   "pink",
	"beige":     "brown",
	"tan":       "brown",
	"golden":    "gold",
	"crimson":   "red",
	"maroon":    "red",
}

// NormalizeColor maps a color name onto the palette. It returns "" when the
// name is not recognized.
func NormalizeColor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := colorAliases[name]; ok {
		return alias
	}
	for _, c := range Colors {
		if c == name {
			return c
		}
	}
	// "dark green", "light blue"
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return NormalizeColor(name[i+1:])
	}
	return ""
}
