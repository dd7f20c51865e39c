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

	"github.com/papercomputeco/chatstream/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes leveled text by default", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Info("stream opened", "status", 200)

			Expect(buf.String()).To(ContainSubstring("level=INFO"))
			Expect(buf.String()).To(ContainSubstring("stream opened"))
			Expect(buf.String()).To(ContainSubstring("status=200"))
		})

		It("filters debug unless enabled", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("event")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("event")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("event"))
		})

		It("writes JSON", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("fragment", "len", 42)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("fragment"))
			Expect(parsed["len"]).To(BeNumerically("==", 42))
		})

		It("prefers JSON over pretty", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true)).Info("x")
			Expect(decodeLine(&buf)["msg"]).To(Equal("x"))
		})

		It("writes pretty output", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("pretty output")
			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("fans out to several writers", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriter(&a, &b)).Info("both")

			Expect(a.String()).To(ContainSubstring("both"))
			Expect(b.String()).To(ContainSubstring("both"))
		})
	})

	Describe("redaction", func() {
		It("masks default keys in JSON output", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).
				Info("request", "token", "sk-secret", "Authorization", "Bearer sk-secret", "model", "gpt-4o")

			Expect(buf.String()).NotTo(ContainSubstring("sk-secret"))
			parsed := decodeLine(&buf)
			Expect(parsed["token"]).To(Equal("[redacted]"))
			Expect(parsed["Authorization"]).To(Equal("[redacted]"))
			Expect(parsed["model"]).To(Equal("gpt-4o"))
		})

		It("masks extra keys inside groups", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithRedact("cookie")).
				WithGroup("http").Info("request", "cookie", "abc")

			group := decodeLine(&buf)["http"].(map[string]any)
			Expect(group["cookie"]).To(Equal("[redacted]"))
		})

		It("masks keys in pretty output including bound attrs", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).With("api_key", "sk-bound")
			l.Info("request", slog.Group("auth", slog.String("token", "sk-grouped")))

			Expect(buf.String()).NotTo(ContainSubstring("sk-bound"))
			Expect(buf.String()).NotTo(ContainSubstring("sk-grouped"))
			Expect(buf.String()).To(ContainSubstring("[redacted]"))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").WithGroup("g").Error("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to every logger by its own level", func() {
			var info, debug bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)

			multi.Debug("event dispatched")
			multi.Info("call finished")

			Expect(info.String()).NotTo(ContainSubstring("event dispatched"))
			Expect(info.String()).To(ContainSubstring("call finished"))
			Expect(debug.String()).To(ContainSubstring("event dispatched"))
			Expect(debug.String()).To(ContainSubstring("call finished"))
		})

		It("carries With and WithGroup to each handler", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))

			multi.With("call_id", "abc").WithGroup("usage").Info("done", "total", 7)

			parsed := decodeLine(&buf)
			Expect(parsed["call_id"]).To(Equal("abc"))
			Expect(parsed["usage"].(map[string]any)["total"]).To(BeNumerically("==", 7))
		})

		It("keeps writing when one handler fails", func() {
			var buf bytes.Buffer
			multi := logger.Multi(slog.New(failingHandler{}), nil, logger.New(logger.WithWriter(&buf)))

			err := multi.Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0))
			Expect(err).To(MatchError("sink down"))
			Expect(buf.String()).To(ContainSubstring("still here"))
		})
	})
})
