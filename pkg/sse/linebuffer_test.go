package sse_test

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/sse"
)

var _ = Describe("LineBuffer", func() {
	It("returns complete lines and holds back the rest", func() {
		var b sse.LineBuffer
		Expect(b.Feed([]byte("one\ntw"))).To(Equal([]string{"one"}))
		Expect(b.Len()).To(Equal(2))
		Expect(b.Feed([]byte("o\r\nthree\n"))).To(Equal([]string{"two", "three"}))
		Expect(b.Len()).To(BeZero())
	})

	It("never splits a multi-byte character", func() {
		text := "日本語\n"
		raw := []byte(text)

		var b sse.LineBuffer
		var lines []string
		for i := range raw {
			lines = append(lines, b.Feed(raw[i:i+1])...)
		}

		Expect(lines).To(Equal([]string{"日本語"}))
		Expect(utf8.ValidString(lines[0])).To(BeTrue())
	})

	It("keeps empty lines", func() {
		var b sse.LineBuffer
		Expect(b.Feed([]byte("a\n\nb\n"))).To(Equal([]string{"a", "", "b"}))
	})

	Describe("Flush", func() {
		It("returns the partial line once", func() {
			var b sse.LineBuffer
			b.Feed([]byte("data: x"))

			line, ok := b.Flush()
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal("data: x"))

			_, ok = b.Flush()
			Expect(ok).To(BeFalse())
		})
	})
})
