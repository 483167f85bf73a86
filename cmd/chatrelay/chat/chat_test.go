package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/stream"
)

type recordedTurn struct {
	Text    string `json:"text"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
}

// fakeRelay answers each turn with the next scripted SSE body.
type fakeRelay struct {
	mu     sync.Mutex
	bodies []string
	status int
	turns  []recordedTurn
	server *httptest.Server
}

func newFakeRelay(bodies ...string) *fakeRelay {
	f := &fakeRelay{bodies: bodies, status: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(r.URL.Path).To(Equal("/api/chat"))
		Expect(r.Header.Get("User-Agent")).To(HavePrefix("chatrelay/"))

		var turn recordedTurn
		Expect(json.NewDecoder(r.Body).Decode(&turn)).To(Succeed())

		f.mu.Lock()
		f.turns = append(f.turns, turn)
		body := ""
		if len(f.bodies) > 0 {
			body, f.bodies = f.bodies[0], f.bodies[1:]
		}
		status := f.status
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid request body"}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	return f
}

func (f *fakeRelay) Turns() []recordedTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedTurn(nil), f.turns...)
}

func chunk(text string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", text)
}

var _ = Describe("chat command", func() {
	It("exposes the relay target flag with the configured default", func() {
		cmd := NewChatCmd()
		f := cmd.Flags().Lookup("relay-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("r"))
		Expect(f.DefValue).To(Equal("http://localhost:8787"))
		Expect(cmd.Flags().Lookup("markdown")).NotTo(BeNil())
	})
})

var _ = Describe("chat session", func() {
	var (
		relay *fakeRelay
		out   *bytes.Buffer
	)

	session := func(input string) error {
		c := &chatCommander{
			relayTarget: relay.server.URL,
			in:          strings.NewReader(input),
			out:         out,
		}
		return c.run(context.Background())
	}

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		relay.server.Close()
	})

	It("streams answers and sends the conversation as history", func() {
		relay = newFakeRelay(
			chunk("Hel")+chunk("lo")+"data: [DONE]\n\n",
			chunk("Fine")+"data: [DONE]\n\n",
		)

		Expect(session("hi\nhow are you?\n/exit\n")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("assistant> Hello"))
		Expect(out.String()).To(ContainSubstring("assistant> Fine"))

		turns := relay.Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[0].Text).To(Equal("hi"))
		Expect(turns[0].History).To(HaveLen(1))
		Expect(turns[0].History[0].Content).To(Equal("hi"))

		Expect(turns[1].Text).To(Equal("how are you?"))
		Expect(turns[1].History).To(HaveLen(3))
		Expect(turns[1].History[0].Role).To(Equal("user"))
		Expect(turns[1].History[0].Content).To(Equal("hi"))
		Expect(turns[1].History[1].Role).To(Equal("assistant"))
		Expect(turns[1].History[1].Content).To(Equal("Hello"))
		Expect(turns[1].History[2].Role).To(Equal("user"))
		Expect(turns[1].History[2].Content).To(Equal("how are you?"))
	})

	It("shows failures inline and leaves them out of history", func() {
		relay = newFakeRelay(
			chunk("partial")+"data: {\"error\":{\"status\":429,\"body\":\"slow down\"}}\n\ndata: [DONE]\n\n",
			chunk("ok")+"data: [DONE]\n\n",
		)

		Expect(session("one\ntwo\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("[error] slow down"))

		turns := relay.Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[1].History).To(HaveLen(2))
		Expect(turns[1].History[0].Content).To(Equal("one"))
		Expect(turns[1].History[1].Content).To(Equal("two"))
	})

	It("prints the placeholder for an empty answer", func() {
		relay = newFakeRelay("data: [DONE]\n\n")

		Expect(session("hello\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(stream.Placeholder))
	})

	It("starts over on /new", func() {
		relay = newFakeRelay(chunk("a")+"data: [DONE]\n\n", chunk("b")+"data: [DONE]\n\n")

		Expect(session("first\n/new\nsecond\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("New conversation"))

		turns := relay.Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[1].History).To(HaveLen(1))
		Expect(turns[1].History[0].Content).To(Equal("second"))
	})

	It("reports a rejected request as a failed turn", func() {
		relay = newFakeRelay()
		relay.status = http.StatusBadRequest

		Expect(session("hello\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("[error] relay returned status 400"))
	})
})

var _ = Describe("client", func() {
	It("records an unreachable relay on the entry", func() {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		cl := newClient(url, logger.Nop())
		entry, err := cl.Send(context.Background(), "hello", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Err).To(BeTrue())
		Expect(entry.Message.Content.String()).To(ContainSubstring("[error] sending request to relay"))
	})

	It("returns a cancelled context to the caller", func() {
		relay := newFakeRelay(chunk("x"))
		defer relay.server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cl := newClient(relay.server.URL, logger.Nop())
		_, err := cl.Send(ctx, "hello", nil)
		Expect(err).To(MatchError(context.Canceled))
	})
})
