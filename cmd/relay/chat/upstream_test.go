package chatcmder

import (
	"fmt"
	"net/http"
	"net/http/httptest"
)

// helloUpstream streams "Hello" in two frames and stops.
func helloUpstream() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range []string{
			`data: {"choices":[{"delta":{"content":"He"}}]}` + "\n\n",
			`data: {"choices":[{"delta":{"content":"llo"},"finish_reason":"stop"}]}` + "\n\n",
		} {
			fmt.Fprint(w, f)
			w.(http.Flusher).Flush()
		}
	}))
}
