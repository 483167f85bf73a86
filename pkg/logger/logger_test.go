package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
)

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

// decodeLines parses every JSON record written to buf.
func decodeLines(buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		ExpectWithOffset(1, json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

var _ = Describe("New", func() {
	It("writes Info-level text records by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Debug("hidden")
		l.Info("starting relay", "listen", ":8787")

		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("starting relay"))
		Expect(buf.String()).To(ContainSubstring("listen=:8787"))
	})

	It("lowers the level with WithDebug", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
		l.Debug("stream finished", "deltas", 3)

		Expect(buf.String()).To(ContainSubstring("stream finished"))
	})

	It("emits one JSON object per record with WithJSON", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Warn("skipping malformed upstream line", "bytes", 12)
		l.With("shape", "gemini").Info("upstream ready")

		records := decodeLines(&buf)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["level"]).To(Equal("WARN"))
		Expect(records[0]["bytes"]).To(BeNumerically("==", 12))
		Expect(records[1]["shape"]).To(Equal("gemini"))
	})

	It("uses the charm handler with WithPretty", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		l.Info("received signal, shutting down", "signal", "interrupt")

		Expect(buf.String()).To(ContainSubstring("received signal, shutting down"))
		Expect(buf.String()).To(ContainSubstring("interrupt"))
	})

	It("attaches WithAttrs pairs to every record", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true),
			logger.WithAttrs("service", "chatrelay", "version", "dev"))
		l.Info("relay configured")
		l.Warn("upstream returned error", "status", 500)

		records := decodeLines(&buf)
		Expect(records).To(HaveLen(2))
		for _, rec := range records {
			Expect(rec).To(HaveKeyWithValue("service", "chatrelay"))
			Expect(rec).To(HaveKeyWithValue("version", "dev"))
		}
	})

	It("sets the minimum level with WithLevel", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
		l.Info("chat turn complete")
		l.Warn("skipping malformed upstream line")

		Expect(buf.String()).NotTo(ContainSubstring("chat turn complete"))
		Expect(buf.String()).To(ContainSubstring("skipping malformed upstream line"))
	})

	It("copies records to every writer given to WithWriters", func() {
		var a, b bytes.Buffer
		logger.New(logger.WithWriters(&a, &b)).Info("relay closed")

		Expect(a.String()).To(ContainSubstring("relay closed"))
		Expect(b.String()).To(Equal(a.String()))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
			Expect(h.Enabled(context.Background(), level)).To(BeFalse())
		}
	})
})

var _ = Describe("Multi", func() {
	var console, file bytes.Buffer

	BeforeEach(func() {
		console.Reset()
		file.Reset()
	})

	It("lets each logger keep its own level", func() {
		multi := logger.Multi(
			logger.New(logger.WithWriter(&console)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true), logger.WithDebug(true)),
		)

		multi.Debug("upstream request", "url", "https://example.test")
		multi.Info("stream finished")

		Expect(console.String()).NotTo(ContainSubstring("upstream request"))
		Expect(console.String()).To(ContainSubstring("stream finished"))

		records := decodeLines(&file)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["msg"]).To(Equal("upstream request"))
	})

	It("carries attributes and groups into every logger", func() {
		multi := logger.Multi(
			logger.New(logger.WithWriter(&console), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		)

		multi.With("stream_id", "chatcmpl-1").WithGroup("upstream").Info("failed", "status", 429)

		for _, buf := range []*bytes.Buffer{&console, &file} {
			records := decodeLines(buf)
			Expect(records).To(HaveLen(1))
			Expect(records[0]["stream_id"]).To(Equal("chatcmpl-1"))
			group, ok := records[0]["upstream"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["status"]).To(BeNumerically("==", 429))
		}
	})

	It("keeps writing to the console when the log file fails", func() {
		multi := logger.Multi(
			logger.New(logger.WithWriter(failingWriter{}), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&console)),
		)

		err := multi.Handler().Handle(context.Background(),
			slog.NewRecord(time.Now(), slog.LevelInfo, "relay configured", 0))
		Expect(err).To(MatchError(errDiskFull))
		Expect(console.String()).To(ContainSubstring("relay configured"))
	})

	It("skips nil loggers", func() {
		multi := logger.Multi(nil, logger.New(logger.WithWriter(&console)))
		multi.Info("starting relay server")
		Expect(console.String()).To(ContainSubstring("starting relay server"))
	})

	It("is disabled only when every logger is", func() {
		multi := logger.Multi(logger.Nop(), logger.New(logger.WithWriter(&console)))
		Expect(multi.Handler().Enabled(context.Background(), slog.LevelInfo)).To(BeTrue())
		Expect(multi.Handler().Enabled(context.Background(), slog.LevelDebug)).To(BeFalse())
	})
})
