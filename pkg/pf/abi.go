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

package pf

import "unsafe"

// Constants from OpenBSD <sys/socket.h>, <net/if.h>, <sys/syslimits.h> and
// <net/pfvar.h>. abi_openbsd.go checks them against golang.org/x/sys/unix.
const (
	AFInet  = 2
	AFInet6 = 24

	IFNameSize      = 16
	PathMax         = 1024
	TableNameSize   = 32
	addrUnionSize   = 16
	pfrAddrPadBytes = 7
)

// PfrAddr mirrors struct pfr_addr. U is the pfra_u union: an in_addr in its
// first four bytes or an in6_addr in all sixteen, selected by Af.
type PfrAddr struct {
	U      [addrUnionSize]byte
	Ifname [IFNameSize]byte
	States uint32
	Weight uint16
	Af     uint8
	Net    uint8
	Not    uint8
	Fback  uint8
	Type   uint8
	Pad    [pfrAddrPadBytes]uint8
	_      [2]byte
}

// PfrTable mirrors struct pfr_table.
type PfrTable struct {
	Anchor [PathMax]byte
	Name   [TableNameSize]byte
	Flags  uint32
	Fback  uint8
	_      [3]byte
}

// PfiocTable mirrors struct pfioc_table. Buffer is handed to the kernel as a
// bare address; the array behind it must stay alive until the ioctl returns.
type PfiocTable struct {
	Table   PfrTable
	Buffer  *PfrAddr
	Esize   int32
	Size    int32
	Size2   int32
	Nadd    int32
	Ndel    int32
	Nchange int32
	Flags   int32
	Ticket  uint32
}

const (
	SizeofPfrAddr    = int(unsafe.Sizeof(PfrAddr{}))
	SizeofPfrTable   = int(unsafe.Sizeof(PfrTable{}))
	SizeofPfiocTable = int(unsafe.Sizeof(PfiocTable{}))
)

// NewPfrAddr returns a pfr_addr with every byte zero.
func NewPfrAddr() PfrAddr { return PfrAddr{} }

// NewPfrTable returns a pfr_table with every byte zero.
func NewPfrTable() PfrTable { return PfrTable{} }

// NewPfiocTable returns a pfioc_table with every byte zero.
func NewPfiocTable() PfiocTable { return PfiocTable{} }

// BSD ioctl request encoding from <sys/ioccom.h>.
const (
	iocParmMask = 0x1fff
	iocOut      = 0x40000000
	iocIn       = 0x80000000
	iocInOut    = iocIn | iocOut

	iocTable = iocInOut | (unsafe.Sizeof(PfiocTable{})&iocParmMask)<<16 | 'D'<<8
)

// Table ioctl requests, _IOWR('D', n, struct pfioc_table).
const (
	DIOCRCLRADDRS uintptr = iocTable | 66
	DIOCRADDADDRS uintptr = iocTable | 67
	DIOCRDELADDRS uintptr = iocTable | 68
	DIOCRSETADDRS uintptr = iocTable | 69
	DIOCRGETADDRS uintptr = iocTable | 70
	DIOCRTSTADDRS uintptr = iocTable | 73
)

// Values the kernel writes into pfr_addr.pfra_fback.
const (
	FeedbackNone     = 0
	FeedbackMatch    = 1
	FeedbackNotMatch = 7
)
