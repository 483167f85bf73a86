package provider_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
)

var _ = Describe("New", func() {
	DescribeTable("resolves every supported shape",
		func(shape llm.Shape, passThrough bool) {
			p, err := provider.New(shape)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Shape()).To(Equal(shape))
			Expect(p.PassThrough()).To(Equal(passThrough))
		},
		Entry("gemini", llm.ShapeGemini, false),
		Entry("chat-completions", llm.ShapeChatCompletions, true),
		Entry("responses", llm.ShapeResponses, true),
	)

	It("rejects unknown shapes", func() {
		_, err := provider.New(llm.Shape("anthropic"))
		Expect(err).To(MatchError(provider.ErrUnknownShape))
	})
})

var _ = Describe("ParseShape", func() {
	It("accepts aliases and mixed case", func() {
		Expect(provider.ParseShape("OpenAI")).To(Equal(llm.ShapeChatCompletions))
		Expect(provider.ParseShape(" gemini ")).To(Equal(llm.ShapeGemini))
		Expect(provider.ParseShape("responses")).To(Equal(llm.ShapeResponses))
	})

	It("rejects unknown names", func() {
		_, err := provider.ParseShape("bedrock")
		Expect(err).To(MatchError(provider.ErrUnknownShape))
	})
})

// The two OpenAI shapes differ in exactly one rule: chat completions wraps
// text content in a block list, responses keeps it a string.
var _ = Describe("chat-completions versus responses content", func() {
	conversation := []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "system prompt"),
		llm.NewTextMessage(llm.RoleUser, "first"),
		llm.NewTextMessage(llm.RoleAssistant, "second"),
		llm.NewTextMessage(llm.RoleUser, "third"),
	}
	profile := llm.Profile{BaseURL: "http://upstream", Path: "/v1", Model: "m"}

	It("wraps every message for chat-completions and none for responses", func() {
		chat, err := provider.New(llm.ShapeChatCompletions)
		Expect(err).NotTo(HaveOccurred())
		resp, err := provider.New(llm.ShapeResponses)
		Expect(err).NotTo(HaveOccurred())

		chatReq, err := chat.Compose(conversation, profile)
		Expect(err).NotTo(HaveOccurred())
		respReq, err := resp.Compose(conversation, profile)
		Expect(err).NotTo(HaveOccurred())

		var chatBody struct {
			Messages []struct {
				Content []map[string]string `json:"content"`
			} `json:"messages"`
		}
		Expect(json.Unmarshal(chatReq.Body, &chatBody)).To(Succeed())

		var respBody struct {
			Input []struct {
				Content string `json:"content"`
			} `json:"input"`
		}
		Expect(json.Unmarshal(respReq.Body, &respBody)).To(Succeed())

		Expect(chatBody.Messages).To(HaveLen(len(conversation)))
		Expect(respBody.Input).To(HaveLen(len(conversation)))
		for i, msg := range conversation {
			Expect(chatBody.Messages[i].Content).To(Equal([]map[string]string{{"type": "text", "text": msg.Content.String()}}))
			Expect(respBody.Input[i].Content).To(Equal(msg.Content.String()))
		}
	})
})
