package streamscmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	relaycmder "github.com/papercomputeco/streamrelay/cmd/relay"
)

var _ = Describe("Streams command execution", func() {
	var (
		srv       *httptest.Server
		mu        sync.Mutex
		cancelled []string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		cancelled = nil
		out = &bytes.Buffer{}

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/streams", func(w http.ResponseWriter, _ *http.Request) {
			started := time.Now().Add(-3 * time.Second).UTC().Format(time.RFC3339Nano)
			fmt.Fprintf(w, `{"count":1,"streams":[{"id":"live-1","started_at":%q}]}`, started)
		})
		mux.HandleFunc("DELETE /v1/streams/{id}", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			cancelled = append(cancelled, r.PathValue("id"))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		srv = httptest.NewServer(mux)
	})

	AfterEach(func() {
		srv.Close()
	})

	execute := func(args ...string) error {
		cmd := relaycmder.NewRelayCmd()
		cmd.SetOut(out)
		cmd.SetArgs(append(args, "--config-dir", GinkgoT().TempDir(), "--relay-target", srv.URL))
		return cmd.Execute()
	}

	It("lists live streams", func() {
		Expect(execute("streams")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("STREAM"))
		Expect(out.String()).To(ContainSubstring("live-1"))
	})

	It("cancels every id given", func() {
		Expect(execute("streams", "cancel", "a", "b")).To(Succeed())

		mu.Lock()
		defer mu.Unlock()
		Expect(cancelled).To(Equal([]string{"a", "b"}))
	})

	It("requires at least one id to cancel", func() {
		Expect(execute("streams", "cancel")).To(HaveOccurred())
	})
})
