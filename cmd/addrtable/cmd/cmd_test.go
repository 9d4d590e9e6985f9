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

package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"sigs.k8s.io/knftables"

	"github.com/containernetworking/addrtable/internal/backend"
	"github.com/containernetworking/addrtable/pkg/addrtable"
	"github.com/containernetworking/addrtable/pkg/nftset"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var _ = Describe("addrtable command", func() {
	var (
		nft    *knftables.Fake
		opened []backend.Options
		o      *options
	)

	BeforeEach(func() {
		nft = knftables.NewFake(knftables.InetFamily, nftset.DefaultTable)
		opened = nil
		o = &options{
			open: func(opts backend.Options, log zerolog.Logger) (addrtable.Manager, io.Closer, error) {
				opened = append(opened, opts)
				return nftset.NewWithInterface(nft, log), nopCloser{}, nil
			},
		}
	})

	run := func(args ...string) (string, error) {
		GinkgoHelper()
		var out, errOut bytes.Buffer
		root := newRootCmd(o)
		root.SetArgs(args)
		root.SetOut(&out)
		root.SetErr(&errOut)
		err := root.Execute()
		return out.String(), err
	}

	It("adds, shows and deletes addresses", func() {
		out, err := run("add", "blocked", "192.0.2.1", "2001:db8::/32")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2/2 addresses added.\n"))

		out, err = run("add", "blocked", "192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("0/1 addresses added.\n"))

		out, err = run("show", "blocked")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("192.0.2.1/32\n2001:db8::/32\n"))

		out, err = run("delete", "blocked", "192.0.2.1", "198.51.100.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("1/2 addresses deleted.\n"))
	})

	It("reads addresses from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "list.txt")
		Expect(os.WriteFile(path, []byte("# blocklist\n192.0.2.1 192.0.2.2\n10.0.0.0/8\n"), 0o644)).To(Succeed())

		out, err := run("add", "blocked", "-f", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("3/3 addresses added.\n"))
	})

	It("flushes a table", func() {
		_, err := run("add", "blocked", "192.0.2.1", "192.0.2.2")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("flush", "blocked")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2 addresses deleted.\n"))
	})

	It("replaces a table", func() {
		_, err := run("add", "blocked", "192.0.2.1", "192.0.2.2")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("replace", "blocked", "192.0.2.2", "192.0.2.3")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("1 addresses added.\n1 addresses deleted.\n"))
	})

	It("fails a test unless every address matches", func() {
		_, err := run("add", "blocked", "10.0.0.0/8")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("test", "blocked", "10.1.1.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("1/1 addresses match.\n"))

		out, err = run("test", "blocked", "10.1.1.1", "192.0.2.1")
		Expect(err).To(MatchError("1 of 2 addresses do not match"))
		Expect(out).To(Equal("1/2 addresses match.\n"))
	})

	It("reports missing tables", func() {
		_, err := run("show", "missing")
		Expect(err).To(MatchError(addrtable.ErrNotFound))
		Expect(err.Error()).To(HavePrefix("show missing: "))
	})

	It("rejects bad addresses before opening the backend", func() {
		_, err := run("add", "blocked", "192.0.2.300")
		Expect(err).To(HaveOccurred())
		Expect(opened).To(BeEmpty())
	})

	It("passes flags to the backend", func() {
		_, err := run("--backend", "nftables", "--anchor", "relayd", "--device", "/dev/pf1", "add", "blocked", "192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(opened).To(Equal([]backend.Options{{
			Backend:       "nftables",
			Device:        "/dev/pf1",
			Anchor:        "relayd",
			NFTablesTable: "addrtable",
		}}))
	})

	It("takes the table lock when a lock directory is configured", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "locks")
		GinkgoT().Setenv("ADDRTABLE_LOCK_DIR", dir)

		_, err := run("add", "blocked", "192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(dir, "blocked.lock")).To(BeARegularFile())
	})

	It("rejects an invalid backend", func() {
		_, err := run("--backend", "ipfw", "show", "blocked")
		Expect(err).To(MatchError(ContainSubstring("backend must be")))
		Expect(opened).To(BeEmpty())
	})

	It("syncs a table from a watched file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "list.txt")
		Expect(os.WriteFile(path, []byte("192.0.2.1\n"), 0o644)).To(Succeed())

		replaced := make(chan []addrtable.Entry, 100)
		o.open = func(_ backend.Options, log zerolog.Logger) (addrtable.Manager, io.Closer, error) {
			mgr := nftset.NewWithInterface(nft, log)
			return &replaceRecorder{Manager: mgr, replaced: replaced}, nopCloser{}, nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		root := newRootCmd(o)
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- o.watch(ctx, root, "blocked", path)
		}()

		Eventually(replaced).Should(Receive(Equal(entryList("192.0.2.1"))))

		// The watch may not be registered yet; rewrite until a sync is seen.
		want := entryList("192.0.2.2", "192.0.2.3")
		Eventually(func() []addrtable.Entry {
			Expect(os.WriteFile(path, []byte("192.0.2.2\n192.0.2.3\n"), 0o644)).To(Succeed())
			select {
			case got := <-replaced:
				return got
			case <-time.After(200 * time.Millisecond):
				return nil
			}
		}, 10*time.Second).Should(Equal(want))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})

type replaceRecorder struct {
	addrtable.Manager
	replaced chan []addrtable.Entry
}

func (r *replaceRecorder) Replace(name string, entries []addrtable.Entry) (addrtable.Changes, error) {
	changes, err := r.Manager.Replace(name, entries)
	r.replaced <- entries
	return changes, err
}

func entryList(s ...string) []addrtable.Entry {
	GinkgoHelper()
	entries, err := addrtable.ParseEntryList(s)
	Expect(err).NotTo(HaveOccurred())
	return entries
}
