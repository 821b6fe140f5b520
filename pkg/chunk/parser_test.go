package chunk_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/chunk"
)

var _ = Describe("Parse", func() {
	Context("with the done sentinel", func() {
		It("produces a finish delta with reason done", func() {
			Expect(chunk.Parse("[DONE]")).To(Equal([]chunk.Delta{
				{Kind: chunk.KindFinish, FinishReason: chunk.ReasonDone},
			}))
		})

		It("accepts a full data line", func() {
			Expect(chunk.Parse("data: [DONE]")).To(Equal([]chunk.Delta{
				{Kind: chunk.KindFinish, FinishReason: chunk.ReasonDone},
			}))
		})
	})

	Context("with OpenAI-style chunks", func() {
		It("emits a content delta", func() {
			deltas := chunk.Parse(`{"choices":[{"delta":{"content":"He"}}]}`)
			Expect(deltas).To(Equal([]chunk.Delta{{Kind: chunk.KindContent, Content: "He"}}))
		})

		It("emits content before the finish reason of the same choice", func() {
			deltas := chunk.Parse(`{"choices":[{"delta":{"content":"llo"},"finish_reason":"stop"}]}`)
			Expect(deltas).To(Equal([]chunk.Delta{
				{Kind: chunk.KindContent, Content: "llo"},
				{Kind: chunk.KindFinish, FinishReason: "stop"},
			}))
		})

		It("preserves order across choices", func() {
			deltas := chunk.Parse(`{"choices":[{"delta":{"content":"a"}},{"delta":{"content":"b"},"finish_reason":"length"},{"delta":{"content":"c"}}]}`)
			Expect(deltas).To(Equal([]chunk.Delta{
				{Kind: chunk.KindContent, Content: "a"},
				{Kind: chunk.KindContent, Content: "b"},
				{Kind: chunk.KindFinish, FinishReason: "length"},
				{Kind: chunk.KindContent, Content: "c"},
			}))
		})

		It("ignores null and empty finish reasons", func() {
			Expect(chunk.Parse(`{"choices":[{"delta":{"content":"x"},"finish_reason":null}]}`)).To(HaveLen(1))
			Expect(chunk.Parse(`{"choices":[{"delta":{"content":"x"},"finish_reason":""}]}`)).To(HaveLen(1))
		})

		It("skips empty role-only deltas", func() {
			Expect(chunk.Parse(`{"choices":[{"delta":{"role":"assistant","content":""}}]}`)).To(BeEmpty())
		})

		It("produces nothing for usage-only chunks", func() {
			Expect(chunk.Parse(`{"choices":[],"usage":{"prompt_tokens":3}}`)).To(BeEmpty())
		})
	})

	Context("with malformed input", func() {
		It("passes invalid JSON through as raw", func() {
			Expect(chunk.Parse("{not json")).To(Equal([]chunk.Delta{{Kind: chunk.KindRaw, Raw: "{not json"}}))
		})

		It("passes objects without choices through as raw", func() {
			raw := `{"error":{"message":"rate limited"}}`
			Expect(chunk.Parse(raw)).To(Equal([]chunk.Delta{{Kind: chunk.KindRaw, Raw: raw}}))
		})

		It("keeps the original line including the data prefix", func() {
			Expect(chunk.Parse("data: oops")).To(Equal([]chunk.Delta{{Kind: chunk.KindRaw, Raw: "data: oops"}}))
		})

		It("does not panic on empty input", func() {
			Expect(func() { chunk.Parse("") }).NotTo(Panic())
			Expect(chunk.Parse("")).To(Equal([]chunk.Delta{{Kind: chunk.KindRaw, Raw: ""}}))
		})
	})

	Describe("Kind", func() {
		It("has readable names", func() {
			Expect(chunk.KindContent.String()).To(Equal("content"))
			Expect(chunk.KindFinish.String()).To(Equal("finish"))
			Expect(chunk.KindRaw.String()).To(Equal("raw"))
		})
	})
})
