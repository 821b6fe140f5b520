package topcmder

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/relayclient"
)

type fakeClient struct {
	mu        sync.Mutex
	streams   []relayclient.Stream
	listErr   error
	cancelled []string
}

func (f *fakeClient) Target() string { return "http://relay.test" }

func (f *fakeClient) ListStreams(context.Context) ([]relayclient.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams, f.listErr
}

func (f *fakeClient) CancelStream(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func press(text string) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: []rune(text)[0], Text: text}
}

var _ = Describe("topModel", func() {
	var (
		client *fakeClient
		model  topModel
		now    time.Time
	)

	update := func(msg tea.Msg) tea.Cmd {
		next, cmd := model.Update(msg)
		model = next.(topModel)
		return cmd
	}

	BeforeEach(func() {
		now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		client = &fakeClient{streams: []relayclient.Stream{
			{ID: "first", StartedAt: now.Add(-2 * time.Second)},
			{ID: "second", StartedAt: now.Add(-500 * time.Millisecond)},
		}}
		model = newTopModel(context.Background(), client, time.Second)
	})

	It("loads streams through the fetch command", func() {
		msg := model.fetch()()
		update(msg)

		Expect(model.streams).To(HaveLen(2))
		out := model.render(now)
		Expect(out).To(ContainSubstring("first"))
		Expect(out).To(ContainSubstring("2.0s"))
		Expect(out).To(ContainSubstring("500ms"))
	})

	It("moves the cursor within bounds", func() {
		update(model.fetch()())

		update(press("j"))
		Expect(model.cursor).To(Equal(1))
		update(press("j"))
		Expect(model.cursor).To(Equal(1))
		update(press("k"))
		update(press("k"))
		Expect(model.cursor).To(Equal(0))
	})

	It("cancels the selected stream and refreshes", func() {
		update(model.fetch()())
		update(press("j"))

		cmd := update(press("x"))
		Expect(cmd).NotTo(BeNil())

		refresh := update(cmd())
		Expect(client.cancelled).To(Equal([]string{"second"}))
		Expect(model.notice).To(Equal("cancelled second"))
		Expect(refresh).NotTo(BeNil())
	})

	It("clamps the cursor when streams finish", func() {
		update(model.fetch()())
		update(press("j"))

		update(streamsLoadedMsg{streams: client.streams[:1], at: now})
		Expect(model.cursor).To(Equal(0))
	})

	It("keeps the last listing and shows the error when a refresh fails", func() {
		update(model.fetch()())

		update(streamsLoadedMsg{err: errors.New("connection refused")})
		Expect(model.streams).To(HaveLen(2))
		Expect(model.render(now)).To(ContainSubstring("connection refused"))
	})

	It("reports an empty server", func() {
		update(streamsLoadedMsg{at: now})
		Expect(model.render(now)).To(ContainSubstring("no active streams"))
	})

	It("quits on q", func() {
		cmd := update(press("q"))
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(BeAssignableToTypeOf(tea.QuitMsg{}))
	})
})
