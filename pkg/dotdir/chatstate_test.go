package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

var _ = Describe("dotdir.Manager chat state", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing was saved", func() {
		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a conversation", func() {
		state := &dotdir.ChatState{
			ConversationID: "conv-1",
			Messages: []chat.Message{
				chat.NewMessage(chat.RoleUser, "hello"),
				chat.NewMessage(chat.RoleAssistant, "hi there"),
			},
		}
		Expect(m.SaveChatState(state, tmpDir)).To(Succeed())

		loaded, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(state))

		info, err := os.Stat(filepath.Join(tmpDir, "chat.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("reads the documented layout", func() {
		data := `{"conversation_id":"abc","messages":[{"role":"user","content":"hello"}]}`
		Expect(os.WriteFile(filepath.Join(tmpDir, "chat.json"), []byte(data), 0o600)).To(Succeed())

		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ConversationID).To(Equal("abc"))
		Expect(state.Messages).To(Equal([]chat.Message{{Role: chat.RoleUser, Content: "hello"}}))
	})

	It("returns error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "chat.json"), []byte("not json"), 0o600)).To(Succeed())

		state, err := m.LoadChatState(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("parsing chat state")))
		Expect(state).To(BeNil())
	})

	It("refuses to save nil", func() {
		Expect(m.SaveChatState(nil, tmpDir)).To(HaveOccurred())
	})

	It("clears saved state and tolerates a second clear", func() {
		Expect(m.SaveChatState(&dotdir.ChatState{ConversationID: "x"}, tmpDir)).To(Succeed())
		Expect(m.ClearChatState(tmpDir)).To(Succeed())
		Expect(m.ClearChatState(tmpDir)).To(Succeed())

		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
