package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		ghttpServer *ghttp.Server
		extractor   *Ollama
		ctx         context.Context
		imageData   []byte
		data        *ReceiptData
		err         error
	)

	BeforeEach(func() {
		ctx = context.Background()
		ghttpServer = ghttp.NewServer()
		extractor, err = NewOllama(ghttpServer.URL(), "qwen2-vl:7b")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())
		imageData = buf.Bytes()
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	JustBeforeEach(func() {
		data, err = extractor.ExtractReceipt(ctx, imageData, "image/png")
	})

	When("the model answers with receipt JSON", func() {
		BeforeEach(func() {
			ghttpServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2-vl:7b"))
					Expect(req.Format).To(Equal("json"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{
						Role:    "assistant",
						Content: `{"vendor": "Chevron", "date": "2024-05-06", "amount": "$62.10", "confidence": 0.88}`,
					},
					Done: true,
				}),
			))
		})

		It("returns the extracted fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Vendor).To(Equal("Chevron"))
			Expect(data.Date).To(Equal("2024-05-06"))
			Expect(*data.Amount).To(Equal(62.10))
			Expect(data.Confidence).To(Equal(0.88))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			ghttpServer.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the context is already cancelled", func() {
		BeforeEach(func() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(context.Background())
			cancel()
		})

		It("does not call the model", func() {
			Expect(err).To(HaveOccurred())
			Expect(ghttpServer.ReceivedRequests()).To(BeEmpty())
		})
	})
})
