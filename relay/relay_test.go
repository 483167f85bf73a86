package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/stream"
)

var _ = Describe("Relay server", func() {
	var (
		r        *Relay
		upstream *httptest.Server
		received chan []byte
	)

	BeforeEach(func() {
		received = make(chan []byte, 1)
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			received <- body

			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, f := range []string{geminiFrame("Hi"), geminiFrame(" there")} {
				io.WriteString(w, f)
				flusher.Flush()
			}
		}))
		r = newTestRelay(llm.ShapeGemini, upstream.URL, time.Minute)
	})

	AfterEach(func() {
		r.Close()
		upstream.Close()
	})

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("POST /api/chat", func() {
		It("streams a normalized SSE response", func() {
			resp := post(`{"history":[{"role":"user","content":"Say hi"}]}`)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream; charset=utf-8"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache, no-transform"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(chunkFrame("Hi") + chunkFrame(" there") + "data: [DONE]\n\n"))
		})

		It("can be consumed end to end into a transcript", func() {
			resp := post(`{"history":[{"role":"user","content":"Say hi"}]}`)
			defer resp.Body.Close()

			t := stream.NewTranscript()
			t.Begin("Say hi")
			Expect(stream.Consume(context.Background(), resp.Body, func(ev stream.Event) {
				t.Apply(ev)
			})).To(Succeed())

			last, ok := t.Last()
			Expect(ok).To(BeTrue())
			Expect(last.Err).To(BeFalse())
			Expect(last.Streaming).To(BeFalse())
			Expect(last.Message.Content.String()).To(Equal("Hi there"))
		})

		It("prepends the system prompt and maps roles", func() {
			resp := post(`{"history":[
				{"role":"USER","content":"one"},
				{"role":"assistant","content":"two"},
				{"role":"tool","content":{"k":1}},
				"not an object"
			]}`)
			resp.Body.Close()

			var body []byte
			Eventually(received).Should(Receive(&body))
			Expect(body).To(MatchJSON(`{
				"contents": [
					{"role": "user", "parts": [{"text": "one"}]},
					{"role": "model", "parts": [{"text": "two"}]},
					{"role": "user", "parts": [{"text": "{\"k\":1}"}]}
				],
				"systemInstruction": {"parts": [{"text": "You are a concise assistant."}]}
			}`))
		})

		It("uses text as the only user message when history is empty", func() {
			resp := post(`{"text":"hello","history":"not a list"}`)
			resp.Body.Close()

			var body []byte
			Eventually(received).Should(Receive(&body))
			Expect(body).To(MatchJSON(`{
				"contents": [{"role": "user", "parts": [{"text": "hello"}]}],
				"systemInstruction": {"parts": [{"text": "You are a concise assistant."}]}
			}`))
		})

		It("rejects an undecodable body before streaming", func() {
			resp := post(`{"history":`)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var out map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out).To(Equal(map[string]string{"error": "invalid request body"}))
		})
	})

	Describe("other routes", func() {
		It("answers health checks", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal("ok"))
		})

		DescribeTable("returns 404 for unknown API paths",
			func(method, path string) {
				resp, err := r.server.Test(httptest.NewRequest(method, path, nil), -1)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			},
			Entry("unknown endpoint", http.MethodGet, "/api/nope"),
			Entry("bare prefix", http.MethodGet, "/api"),
			Entry("bare prefix with slash", http.MethodGet, "/api/"),
			Entry("chat endpoint with GET", http.MethodGet, "/api/chat"),
		)

		It("serves the chat page for any other path", func() {
			resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/some/client/route", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(string(body)).To(ContainSubstring("<title>chatrelay</title>"))
		})
	})
})

var _ = Describe("New", func() {
	It("requires a wire shape", func() {
		_, err := New(Config{}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown wire shape", func() {
		_, err := New(Config{Profile: llm.Profile{Shape: "bedrock"}}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})
