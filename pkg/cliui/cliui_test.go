package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds under a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses one decimal of seconds above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("switches to minutes and hours for long ages", func() {
		Expect(cliui.FormatDuration(4*time.Minute + 5*time.Second)).To(Equal("4m05s"))
		Expect(cliui.FormatDuration(2*time.Hour + 13*time.Minute)).To(Equal("2h13m"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("Step", func() {
	It("returns fn's error and prints the final line", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "opening store", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("opening store"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})
})

var _ = Describe("RenderStreams", func() {
	It("reports an empty listing", func() {
		var buf bytes.Buffer
		cliui.RenderStreams(&buf, nil, time.Now())
		Expect(buf.String()).To(ContainSubstring("no active streams"))
	})

	It("lists one row per stream with its age", func() {
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		var buf bytes.Buffer
		cliui.RenderStreams(&buf, []cliui.StreamRow{
			{ID: "a", StartedAt: now.Add(-2 * time.Second)},
			{ID: "longer-id", StartedAt: now.Add(-50 * time.Millisecond)},
		}, now)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[1]).To(HavePrefix("a "))
		Expect(lines[1]).To(HaveSuffix("2.0s"))
		Expect(lines[2]).To(HaveSuffix("50ms"))
	})

	It("cuts very long ids", func() {
		now := time.Now()
		var buf bytes.Buffer
		cliui.RenderStreams(&buf, []cliui.StreamRow{{ID: strings.Repeat("x", 60), StartedAt: now}}, now)
		Expect(buf.String()).To(ContainSubstring(strings.Repeat("x", 40) + "..."))
		Expect(buf.String()).NotTo(ContainSubstring(strings.Repeat("x", 41)))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text content", func() {
		out, err := cliui.RenderMarkdown("hello **world**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("world"))
	})
})
