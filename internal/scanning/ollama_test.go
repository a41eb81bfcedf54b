package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
)

var _ = Describe("Ollama", func() {
	var (
		server      *ghttp.Server
		scanner     *Ollama
		data        []byte
		contentType string
		receipt     *model.Receipt
		err         error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "qwen2.5vl:7b")
		Expect(err).NotTo(HaveOccurred())

		data = []byte("fake image bytes")
		contentType = "image/jpeg"
	})

	AfterEach(func() {
		server.Close()
	})

	It("names the model", func() {
		Expect(scanner.Name()).To(Equal("ollama/qwen2.5vl:7b"))
		Expect(server.ReceivedRequests()).To(BeEmpty())
	})

	Describe("ScanReceipt", func() {
		JustBeforeEach(func() {
			receipt, err = scanner.ScanReceipt(context.Background(), data, contentType)
		})

		When("the model returns a receipt", func() {
			var request ollamaChatRequest

			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
					ghttp.VerifyContentType("application/json"),
					func(w http.ResponseWriter, r *http.Request) {
						body, readErr := io.ReadAll(r.Body)
						Expect(readErr).NotTo(HaveOccurred())
						Expect(json.Unmarshal(body, &request)).To(Succeed())
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
						Message: ollamaMessage{Role: "assistant", Content: sampleResponse},
						Done:    true,
					}),
				))
			})

			It("parses the receipt", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.StoreName()).To(Equal("Toko Maju"))
				Expect(receipt.Total()).To(Equal(model.Some(55000)))
			})

			It("sends the image with the prompt", func() {
				Expect(request.Model).To(Equal("qwen2.5vl:7b"))
				Expect(request.Stream).To(BeFalse())
				Expect(request.Format).To(Equal("json"))
				Expect(request.Messages).To(HaveLen(2))
				Expect(request.Messages[1].Content).To(Equal(receiptScanPrompt))
				Expect(request.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString(data)))
			})
		})

		When("the API fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
			})

			It("returns the status and body", func() {
				Expect(err).To(MatchError(ContainSubstring("status 500")))
				Expect(err).To(MatchError(ContainSubstring("model not loaded")))
			})
		})

		When("the model answers with prose", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "Sorry, I can't read that."},
					Done:    true,
				}))
			})

			It("returns a parse error", func() {
				Expect(err).To(MatchError(ContainSubstring("parsing receipt data")))
			})
		})

		When("the upload is a PDF", func() {
			BeforeEach(func() {
				contentType = "application/pdf"
			})

			It("rejects it without calling the API", func() {
				Expect(err).To(MatchError(ErrUnsupportedContent))
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})
})
