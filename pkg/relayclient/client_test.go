package relayclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/relayclient"
)

var _ = Describe("Client", func() {
	var (
		srv    *httptest.Server
		mux    *http.ServeMux
		client *relayclient.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
		srv = httptest.NewServer(mux)

		var err error
		client, err = relayclient.New(srv.URL + "/")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		srv.Close()
	})

	It("rejects targets that are not http URLs", func() {
		_, err := relayclient.New("localhost:8080")
		Expect(err).To(HaveOccurred())
	})

	It("trims a trailing slash from the target", func() {
		Expect(client.Target()).To(Equal(srv.URL))
	})

	It("lists streams", func() {
		mux.HandleFunc("GET /v1/streams", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"count":1,"streams":[{"id":"s1","started_at":"2026-03-01T10:00:00Z"}]}`)
		})

		streams, err := client.ListStreams(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(streams).To(HaveLen(1))
		Expect(streams[0].ID).To(Equal("s1"))
		Expect(streams[0].StartedAt).To(BeTemporally("==", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	})

	It("cancels a stream by escaped id", func() {
		var gotPath string
		mux.HandleFunc("DELETE /v1/streams/{id}", func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.PathValue("id")
			w.WriteHeader(http.StatusNoContent)
		})

		Expect(client.CancelStream(ctx, "a b")).To(Succeed())
		Expect(gotPath).To(Equal("a b"))
	})

	It("surfaces the server's error message", func() {
		mux.HandleFunc("GET /v1/streams", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"relay closed"}`)
		})

		_, err := client.ListStreams(ctx)
		Expect(err).To(MatchError(ContainSubstring("503: relay closed")))
	})

	It("reports unreachable servers", func() {
		srv.Close()
		_, err := client.ListStreams(ctx)
		Expect(err).To(MatchError(ContainSubstring("contacting relay")))
	})
})
