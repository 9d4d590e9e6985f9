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

//go:build openbsd

package pf

import "golang.org/x/sys/unix"

// The mirrors in abi.go are laid out with the values below; refuse to build
// against a platform whose headers disagree.
var (
	_ [AFInet - unix.AF_INET]struct{}
	_ [unix.AF_INET - AFInet]struct{}
	_ [AFInet6 - unix.AF_INET6]struct{}
	_ [unix.AF_INET6 - AFInet6]struct{}
	_ [IFNameSize - unix.IFNAMSIZ]struct{}
	_ [unix.IFNAMSIZ - IFNameSize]struct{}
	_ [PathMax - unix.PathMax]struct{}
	_ [unix.PathMax - PathMax]struct{}
)
