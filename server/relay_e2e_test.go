package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/relay"
)

var _ = Describe("Server with a relay", func() {
	var (
		upstream *httptest.Server
		handler  http.HandlerFunc
		b        *broker.Broker
		r        *relay.Relay
		s        *Server
	)

	BeforeEach(func() {
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			handler(w, req)
		}))

		b = broker.New()

		var err error
		r, err = relay.New(relay.Config{Upstream: relay.Upstream{Endpoint: upstream.URL}}, b, nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		s, err = NewServer(Config{DisableMCP: true}, r, b, nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
		Expect(b.Close()).To(Succeed())
		upstream.Close()
	})

	start := func(id string) {
		resp, err := s.app.Test(jsonRequest(http.MethodPost, "/v1/streams", relay.StartRequest{
			StreamID: id,
			Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "Hi")},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	}

	It("relays a two frame stream as open, two chunks and end", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range []string{
				`data: {"choices":[{"delta":{"content":"He"}}]}` + "\n\n",
				`data: {"choices":[{"delta":{"content":"llo"},"finish_reason":"stop"}]}` + "\n\n",
			} {
				fmt.Fprint(w, f)
				w.(http.Flusher).Flush()
			}
		}

		start("two-frames")

		resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/streams/two-frames/events", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(eventTypes(readEvents(resp))).To(Equal([]string{"open", "chunk", "chunk", "end"}))
	})

	It("publishes only an error when the upstream answers 500", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}

		start("failing")

		resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/streams/failing/events", nil), -1)
		Expect(err).NotTo(HaveOccurred())

		events := readEvents(resp)
		Expect(eventTypes(events)).To(Equal([]string{"error"}))
		Expect(events[0].Data).To(ContainSubstring("500"))
	})

	It("rejects a second stream with the same id while the first is live", func() {
		release := make(chan struct{})
		handler = func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-req.Context().Done():
			}
		}
		defer close(release)

		start("dup")

		resp, err := s.app.Test(jsonRequest(http.MethodPost, "/v1/streams", relay.StartRequest{
			StreamID: "dup",
			Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "Hi")},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		resp, err = s.app.Test(httptest.NewRequest(http.MethodDelete, "/v1/streams/dup", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/streams/dup/events", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		types := eventTypes(readEvents(resp))
		Expect(types).NotTo(BeEmpty())
		Expect(types[len(types)-1]).To(Equal("cancelled"))
		Expect(types).NotTo(ContainElement("end"))
		Expect(types).NotTo(ContainElement("error"))
	})
})
