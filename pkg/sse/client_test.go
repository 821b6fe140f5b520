package sse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// collect drains the client's events until the channel is closed.
func collect(c *Client) []RawEvent {
	var got []RawEvent
	for ev := range c.Events() {
		got = append(got, ev)
	}
	return got
}

func newRequest(url string) *http.Request {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	Expect(err).NotTo(HaveOccurred())
	return req
}

var _ = Describe("Client", func() {
	var upstream *httptest.Server

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Context("when the upstream streams frames", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				for _, frame := range []string{"data: one\n\n", ": ping\n\n", "data: two\n\n", "data: [DONE]\n\n"} {
					fmt.Fprint(w, frame)
					flusher.Flush()
				}
			}))
		})

		It("emits open first, then one message per frame in order", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{})
			defer c.Close()

			Expect(collect(c)).To(Equal([]RawEvent{
				{Kind: KindOpen},
				{Kind: KindMessage, Data: "one"},
				{Kind: KindMessage, Data: "two"},
				{Kind: KindMessage, Data: "[DONE]"},
			}))
		})
	})

	Context("when the upstream returns a non-2xx status", func() {
		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
		})

		It("emits a single error event and no open", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{})
			defer c.Close()

			events := collect(c)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(KindError))
			Expect(events[0].Data).To(ContainSubstring("status 500"))
			Expect(events[0].Data).To(ContainSubstring("boom"))
		})
	})

	Context("when the connection is refused", func() {
		It("emits a single error event", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			url := dead.URL
			dead.Close()

			c := Connect(context.Background(), http.DefaultClient, newRequest(url), ClientOptions{})
			events := collect(c)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(KindError))
		})
	})

	Context("when the upstream hangs", func() {
		var release chan struct{}

		BeforeEach(func() {
			release = make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: first\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
		})

		AfterEach(func() {
			close(release)
		})

		It("stops producing events after Close and closes the channel", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{})

			Eventually(c.Events()).Should(Receive(Equal(RawEvent{Kind: KindOpen})))
			Eventually(c.Events()).Should(Receive(Equal(RawEvent{Kind: KindMessage, Data: "first"})))

			Expect(c.Close()).To(Succeed())
			Expect(c.Close()).To(Succeed())

			Eventually(c.Events()).Should(BeClosed())
		})

		It("allows Close from another goroutine", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{})
			go func() {
				defer GinkgoRecover()
				time.Sleep(20 * time.Millisecond)
				Expect(c.Close()).To(Succeed())
			}()

			events := collect(c)
			for _, ev := range events {
				Expect(ev.Kind).NotTo(Equal(KindError))
			}
		})

		It("reports an idle timeout as an error event", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{
				IdleTimeout: 50 * time.Millisecond,
			})
			defer c.Close()

			events := collect(c)
			Expect(events).NotTo(BeEmpty())
			last := events[len(events)-1]
			Expect(last.Kind).To(Equal(KindError))
			Expect(last.Data).To(Equal(ErrIdleTimeout.Error()))
		})

		It("ends when the parent context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			c := Connect(ctx, upstream.Client(), newRequest(upstream.URL), ClientOptions{})
			defer c.Close()

			Eventually(c.Events()).Should(Receive(Equal(RawEvent{Kind: KindOpen})))
			cancel()

			Eventually(c.Events(), time.Second).Should(BeClosed())
		})
	})

	Context("when the upstream never sends response headers", func() {
		var release chan struct{}

		BeforeEach(func() {
			release = make(chan struct{})
			upstream = httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
		})

		AfterEach(func() {
			close(release)
		})

		It("reports the idle timeout without an open event", func() {
			c := Connect(context.Background(), upstream.Client(), newRequest(upstream.URL), ClientOptions{
				IdleTimeout: 50 * time.Millisecond,
			})
			defer c.Close()

			Expect(collect(c)).To(Equal([]RawEvent{{Kind: KindError, Data: ErrIdleTimeout.Error()}}))
		})
	})
})
