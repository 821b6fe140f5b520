// Package storagetest holds the behavior every storage.Driver must satisfy,
// as Ginkgo specs shared by the driver test suites.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// base is a fixed instant so timestamps compare exactly across drivers.
var base = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func message(id, conv string, role chat.Role, content string, offset time.Duration) *storage.Message {
	return &storage.Message{
		ID:             id,
		ConversationID: conv,
		Role:           role,
		Content:        content,
		CreatedAt:      base.Add(offset),
	}
}

// DriverBehavior registers specs against the driver returned by newDriver,
// which is called before each spec and must return an empty store.
func DriverBehavior(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("CreateConversation", func() {
		It("stores and retrieves a conversation", func() {
			conv := &storage.Conversation{ID: "c1", Title: "greetings", ModelID: "m", CreatedAt: base}
			Expect(driver.CreateConversation(ctx, conv)).To(Succeed())

			got, err := driver.GetConversation(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("greetings"))
			Expect(got.ModelID).To(Equal("m"))
			Expect(got.CreatedAt).To(BeTemporally("==", base))
			Expect(got.UpdatedAt).To(BeTemporally("==", base))
		})

		It("returns ErrConflict for a duplicate id", func() {
			Expect(driver.CreateConversation(ctx, &storage.Conversation{ID: "c1"})).To(Succeed())
			Expect(driver.CreateConversation(ctx, &storage.Conversation{ID: "c1"})).To(MatchError(storage.ErrConflict))
		})
	})

	Describe("GetConversation", func() {
		It("returns NotFoundError for a missing id", func() {
			_, err := driver.GetConversation(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("AppendMessage", func() {
		It("creates the conversation on demand with a derived title", func() {
			msg := message("m1", "c1", chat.RoleUser, "hello   there", 0)
			msg.Model = "z-ai/glm-4.5-air:free"
			Expect(driver.AppendMessage(ctx, msg)).To(Succeed())

			conv, err := driver.GetConversation(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("hello there"))
			Expect(conv.ModelID).To(Equal("z-ai/glm-4.5-air:free"))
		})

		It("keeps the first title and bumps updated_at", func() {
			Expect(driver.AppendMessage(ctx, message("m1", "c1", chat.RoleUser, "first", 0))).To(Succeed())
			Expect(driver.AppendMessage(ctx, message("m2", "c1", chat.RoleAssistant, "second", time.Minute))).To(Succeed())

			conv, err := driver.GetConversation(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("first"))
			Expect(conv.UpdatedAt).To(BeTemporally("==", base.Add(time.Minute)))
		})

		It("returns ErrConflict for a duplicate message id", func() {
			Expect(driver.AppendMessage(ctx, message("m1", "c1", chat.RoleUser, "a", 0))).To(Succeed())
			Expect(driver.AppendMessage(ctx, message("m1", "c1", chat.RoleUser, "b", time.Second))).To(MatchError(storage.ErrConflict))
		})

		It("rejects invalid roles", func() {
			Expect(driver.AppendMessage(ctx, message("m1", "c1", "tool", "a", 0))).To(HaveOccurred())
		})

		It("stores optional fields", func() {
			tokens := 42
			msg := message("s1", "c1", chat.RoleAssistant, "Hello", 0)
			msg.TokensUsed = &tokens
			msg.FinishReason = "stop"
			Expect(driver.AppendMessage(ctx, msg)).To(Succeed())

			msgs, err := driver.Messages(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(*msgs[0].TokensUsed).To(Equal(42))
			Expect(msgs[0].FinishReason).To(Equal("stop"))
			Expect(msgs[0].Role).To(Equal(chat.RoleAssistant))
		})
	})

	Describe("Messages", func() {
		It("orders messages by creation time regardless of insert order", func() {
			Expect(driver.AppendMessage(ctx, message("b", "c1", chat.RoleAssistant, "second", 2*time.Second))).To(Succeed())
			Expect(driver.AppendMessage(ctx, message("a", "c1", chat.RoleUser, "first", time.Second))).To(Succeed())
			Expect(driver.AppendMessage(ctx, message("s", "c1", chat.RoleSystem, "zeroth", 0))).To(Succeed())

			msgs, err := driver.Messages(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(3))
			Expect([]string{msgs[0].ID, msgs[1].ID, msgs[2].ID}).To(Equal([]string{"s", "a", "b"}))
			Expect(msgs[1].TokensUsed).To(BeNil())
		})

		It("returns an empty list for a conversation without messages", func() {
			Expect(driver.CreateConversation(ctx, &storage.Conversation{ID: "c1"})).To(Succeed())
			msgs, err := driver.Messages(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})

		It("returns NotFoundError for an unknown conversation", func() {
			_, err := driver.Messages(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListConversations", func() {
		It("lists most recently updated first", func() {
			Expect(driver.AppendMessage(ctx, message("m1", "old", chat.RoleUser, "a", 0))).To(Succeed())
			Expect(driver.AppendMessage(ctx, message("m2", "new", chat.RoleUser, "b", time.Hour))).To(Succeed())

			convs, err := driver.ListConversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(convs).To(HaveLen(2))
			Expect(convs[0].ID).To(Equal("new"))
			Expect(convs[1].ID).To(Equal("old"))
		})
	})

	Describe("DeleteConversation", func() {
		It("removes the conversation and its messages", func() {
			Expect(driver.AppendMessage(ctx, message("m1", "c1", chat.RoleUser, "a", 0))).To(Succeed())
			Expect(driver.DeleteConversation(ctx, "c1")).To(Succeed())

			_, err := driver.GetConversation(ctx, "c1")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			Expect(driver.AppendMessage(ctx, message("m1", "c2", chat.RoleUser, "reused id", 0))).To(Succeed())
		})

		It("returns NotFoundError for an unknown conversation", func() {
			Expect(storage.IsNotFound(driver.DeleteConversation(ctx, "missing"))).To(BeTrue())
		})
	})
}
