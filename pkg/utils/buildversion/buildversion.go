// Copyright 2026 CNI authors
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

// Package buildversion holds the version string stamped in at link time.
package buildversion

import "fmt"

// BuildVersion is set with -ldflags "-X ...buildversion.BuildVersion=..."
var BuildVersion = "version unknown"

// BuildString returns the "about" line printed by a binary's version output.
func BuildString(name string) string {
	return fmt.Sprintf("addrtable %s %s", name, BuildVersion)
}
