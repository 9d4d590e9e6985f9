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

package pf_test

import (
	"net/netip"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/pf"
)

var _ = Describe("Entry translation", func() {
	DescribeTable("round-trips domain entries",
		func(e addrtable.Entry) {
			a, err := pf.EncodeEntry(e)
			Expect(err).NotTo(HaveOccurred())
			back, err := pf.DecodeEntry(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(e))
		},
		Entry("an IPv4 host", addrtable.Entry{Addr: netip.MustParseAddr("10.0.0.1"), Prefix: 32}),
		Entry("an IPv4 network", addrtable.Entry{Addr: netip.MustParseAddr("192.168.0.0"), Prefix: 16}),
		Entry("an IPv6 host", addrtable.Entry{Addr: netip.MustParseAddr("2001:db8::1"), Prefix: 128}),
		Entry("an IPv6 default route", addrtable.Entry{Addr: netip.MustParseAddr("::"), Prefix: 0}),
		Entry("an entry with an interface", addrtable.Entry{Addr: netip.MustParseAddr("10.1.1.1"), Prefix: 32, Ifname: "em0"}),
		Entry("the longest interface name", addrtable.Entry{Addr: netip.MustParseAddr("10.1.1.1"), Prefix: 32, Ifname: strings.Repeat("x", pf.IFNameSize-1)}),
	)

	It("stores IPv4 addresses in network byte order", func() {
		a, err := pf.EncodeEntry(addrtable.Entry{Addr: netip.MustParseAddr("10.1.2.3"), Prefix: 32})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Af).To(BeEquivalentTo(pf.AFInet))
		Expect(a.U[:4]).To(Equal([]byte{10, 1, 2, 3}))
		Expect(a.U[4:]).To(Equal(make([]byte, 12)))
		Expect(a.Net).To(BeEquivalentTo(32))
	})

	It("stores IPv6 addresses in network byte order", func() {
		a, err := pf.EncodeEntry(addrtable.Entry{Addr: netip.MustParseAddr("2001:db8::ff"), Prefix: 64})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Af).To(BeEquivalentTo(pf.AFInet6))
		Expect(a.U[0:4]).To(Equal([]byte{0x20, 0x01, 0x0d, 0xb8}))
		Expect(a.U[15]).To(BeEquivalentTo(0xff))
	})

	It("leaves the unused kernel fields zero", func() {
		a, err := pf.EncodeEntry(addrtable.Entry{Addr: netip.MustParseAddr("10.0.0.1"), Prefix: 32, Ifname: "em0"})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Ifname[3:]).To(Equal(make([]byte, pf.IFNameSize-3)))
		Expect(a.States).To(BeZero())
		Expect(a.Weight).To(BeZero())
		Expect(a.Not).To(BeZero())
		Expect(a.Fback).To(BeZero())
		Expect(a.Type).To(BeZero())
		Expect(a.Pad).To(Equal([7]byte{}))
	})

	It("rejects an interface name as long as the buffer", func() {
		_, err := pf.EncodeEntry(addrtable.Entry{
			Addr:   netip.MustParseAddr("10.0.0.1"),
			Prefix: 32,
			Ifname: strings.Repeat("x", pf.IFNameSize),
		})
		Expect(err).To(MatchError(pf.ErrTranslation))
	})

	It("rejects an entry without an address", func() {
		_, err := pf.EncodeEntry(addrtable.Entry{})
		Expect(err).To(MatchError(pf.ErrTranslation))
	})

	It("round-trips kernel entries, ignoring the fields it does not model", func() {
		a := pf.NewPfrAddr()
		a.Af = pf.AFInet
		copy(a.U[:], []byte{172, 16, 0, 0})
		a.Net = 12
		copy(a.Ifname[:], "vio0")
		a.States = 7
		a.Weight = 3

		e, err := pf.DecodeEntry(a)
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(Equal(addrtable.Entry{Addr: netip.MustParseAddr("172.16.0.0"), Prefix: 12, Ifname: "vio0"}))

		back, err := pf.EncodeEntry(e)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.U).To(Equal(a.U))
		Expect(back.Af).To(Equal(a.Af))
		Expect(back.Net).To(Equal(a.Net))
		Expect(back.Ifname).To(Equal(a.Ifname))
	})

	It("never reads the IPv6 bytes of an IPv4 entry", func() {
		a := pf.NewPfrAddr()
		a.Af = pf.AFInet
		for i := range a.U {
			a.U[i] = 0xee
		}
		copy(a.U[:4], []byte{10, 0, 0, 9})
		a.Net = 32

		e, err := pf.DecodeEntry(a)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Addr).To(Equal(netip.MustParseAddr("10.0.0.9")))
	})

	It("rejects an unknown address family", func() {
		for _, af := range []uint8{0, 1, 10, 23, 25, 255} {
			a := pf.NewPfrAddr()
			a.Af = af
			_, err := pf.DecodeEntry(a)
			Expect(err).To(MatchError(pf.ErrUnknownAddressFamily))
			Expect(err).To(MatchError(pf.ErrTranslation))
		}
	})

	It("rejects an interface name that is not text", func() {
		a := pf.NewPfrAddr()
		a.Af = pf.AFInet
		a.Net = 32
		copy(a.Ifname[:], []byte{'e', 'm', 0xff})
		_, err := pf.DecodeEntry(a)
		Expect(err).To(MatchError(pf.ErrTranslation))
	})
})

var _ = Describe("Table translation", func() {
	It("round-trips a five character name in the main ruleset", func() {
		t, err := pf.EncodeTable(pf.TableRef{Name: "abcde"})
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Name[:6]).To(Equal([]byte("abcde\x00")))

		ref, err := pf.DecodeTable(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(pf.TableRef{Anchor: "", Name: "abcde"}))
	})

	It("round-trips an anchor path", func() {
		in := pf.TableRef{Anchor: "relayd/web", Name: "blocked"}
		t, err := pf.EncodeTable(in)
		Expect(err).NotTo(HaveOccurred())
		ref, err := pf.DecodeTable(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(in))
		Expect(ref.String()).To(Equal("relayd/web:blocked"))
	})

	It("enforces the buffer capacities", func() {
		_, err := pf.EncodeTable(pf.TableRef{Name: strings.Repeat("n", pf.TableNameSize)})
		Expect(err).To(MatchError(pf.ErrTranslation))
		_, err = pf.EncodeTable(pf.TableRef{Name: strings.Repeat("n", pf.TableNameSize-1)})
		Expect(err).NotTo(HaveOccurred())

		_, err = pf.EncodeTable(pf.TableRef{Anchor: strings.Repeat("a", pf.PathMax), Name: "t"})
		Expect(err).To(MatchError(pf.ErrTranslation))
		_, err = pf.EncodeTable(pf.TableRef{Anchor: strings.Repeat("a", pf.PathMax-1), Name: "t"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a name that is not text once trailing zeros are trimmed", func() {
		t := pf.NewPfrTable()
		copy(t.Name[:], []byte{'b', 'a', 'd', 0xc3})
		_, err := pf.DecodeTable(t)
		Expect(err).To(MatchError(pf.ErrTranslation))
	})

	It("only trims trailing zero bytes", func() {
		t := pf.NewPfrTable()
		copy(t.Name[:], []byte("ab\x00cd"))
		ref, err := pf.DecodeTable(t)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.Name).To(Equal("ab\x00cd"))
	})
})
