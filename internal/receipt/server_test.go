package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/radityaharya/workers-receipt-parser/internal/metrics"
)

var ghttpMatchAll = regexp.MustCompile(`.*`)

func multipartUpload(field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

func decodeBody(resp *http.Response, v any) {
	defer resp.Body.Close()
	Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		m           *metrics.Metrics
		service     *Service
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		m = metrics.New()
		service = NewServiceWithDeps(db, scanner, storage, newTestValidator(), m,
			&mockIDGenerator{id: "test-id-123"}, &mockTimeSource{now: testNow})
		server = NewServerWithMux(service, m.Handler(), http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.RouteToHandler(http.MethodGet, ghttpMatchAll, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPost, ghttpMatchAll, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodDelete, ghttpMatchAll, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodOptions, ghttpMatchAll, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPut, ghttpMatchAll, server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("POST /api/receipts/parse", func() {
		var (
			filename    string
			contentType string
			data        []byte
			resp        *http.Response
		)

		BeforeEach(func() {
			filename = "receipt.png"
			contentType = "image/png"
			data = pngFixture()
		})

		JustBeforeEach(func() {
			body, formType := multipartUpload("file", filename, contentType, data)
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/receipts/parse", formType, body)
			Expect(err).NotTo(HaveOccurred())
		})

		When("the upload is scanned", func() {
			It("returns the annotated receipt with its validation", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var body map[string]any
				decodeBody(resp, &body)
				Expect(body).To(HaveKeyWithValue("id", "test-id-123"))
				Expect(body).To(HaveKey("header"))
				Expect(body).To(HaveKey("summary"))
				Expect(body["summary"]).To(HaveKeyWithValue("discrepancy", 0.0))
				Expect(body["summary"]).To(HaveKeyWithValue("service_charge_included", true))
				Expect(body["validation"]).To(HaveKeyWithValue("valid", true))
				Expect(body["validation"]).To(HaveKeyWithValue("confidence_score", 1.0))
			})

			It("sets CORS headers", func() {
				resp.Body.Close()
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})
		})

		When("the part has no content type", func() {
			BeforeEach(func() {
				contentType = ""
			})

			It("detects it", func() {
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(scanner.lastContentType).To(Equal("image/png"))
			})
		})

		When("the upload is not a supported format", func() {
			BeforeEach(func() {
				filename = "notes.txt"
				contentType = "text/plain"
				data = []byte("TOTAL 42.00")
			})

			It("returns Unsupported Media Type", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
				var body map[string]string
				decodeBody(resp, &body)
				Expect(body["error"]).To(ContainSubstring("unsupported media type"))
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("quota exceeded")
			})

			It("returns Bad Gateway", func() {
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("database locked")
			})

			It("hides the internal error", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				var body map[string]string
				decodeBody(resp, &body)
				Expect(body["error"]).To(Equal("Internal server error"))
			})
		})
	})

	Describe("POST /api/receipts/parse without a file", func() {
		It("returns Bad Request", func() {
			body, formType := multipartUpload("other", "receipt.png", "image/png", pngFixture())
			resp, err := http.Post(ghttpServer.URL()+"/api/receipts/parse", formType, body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errBody map[string]string
			decodeBody(resp, &errBody)
			Expect(errBody["error"]).To(ContainSubstring("No file was selected"))
		})
	})

	Describe("POST /api/receipts/validate", func() {
		It("validates the posted receipt", func() {
			payload := `{"summary": {"subtotal": 100, "taxes": 10, "total": 110}, "items": [{"total_price": 100}]}`
			resp, err := http.Post(ghttpServer.URL()+"/api/receipts/validate", "application/json", strings.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Summary struct {
					Discrepancy float64 `json:"discrepancy"`
				} `json:"summary"`
				Validation struct {
					Valid  bool `json:"valid"`
					Issues []struct {
						Type     string `json:"type"`
						Severity string `json:"severity"`
					} `json:"issues"`
				} `json:"validation"`
			}
			decodeBody(resp, &body)
			Expect(body.Summary.Discrepancy).To(Equal(0.0))
			Expect(body.Validation.Valid).To(BeTrue())
			Expect(body.Validation.Issues).To(HaveLen(1))
			Expect(body.Validation.Issues[0].Type).To(Equal("TOTAL_TOO_SMALL"))
			Expect(body.Validation.Issues[0].Severity).To(Equal("fatal"))
			Expect(db.results).To(BeEmpty())
		})

		It("rejects malformed JSON", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/receipts/validate", "application/json", strings.NewReader(`{"summary":`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/receipts", func() {
		When("there is no history", func() {
			It("returns an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})

		When("results exist", func() {
			BeforeEach(func() {
				db.results["abc"] = &ParseResult{ID: "abc", CreatedAt: testNow}
			})

			It("lists them", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				var body []map[string]any
				decodeBody(resp, &body)
				Expect(body).To(HaveLen(1))
				Expect(body[0]).To(HaveKeyWithValue("id", "abc"))
			})
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.results["abc"] = &ParseResult{ID: "abc", Filename: "abc_receipt.png", ContentType: "image/png"}
			storage.files["abc_receipt.png"] = []byte("png bytes")
		})

		It("returns the result", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body map[string]any
			decodeBody(resp, &body)
			Expect(body).To(HaveKeyWithValue("id", "abc"))
		})

		It("returns Not Found for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("serves the uploaded file", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/abc/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})

		It("deletes the result", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/abc", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.results).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("rejects other methods", func() {
			req, err := http.NewRequest(http.MethodPut, ghttpServer.URL()+"/api/receipts/abc", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("GET /api/receipts/export.xlsx", func() {
		It("downloads a workbook", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/export.xlsx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(xlsxContentType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receipts.xlsx"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body[:2]).To(Equal([]byte("PK")))
		})
	})

	Describe("GET /api/rules", func() {
		It("lists the checks and thresholds", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/rules")
			Expect(err).NotTo(HaveOccurred())
			var body struct {
				Rules []struct {
					Name string `json:"name"`
				} `json:"rules"`
				Config map[string]any `json:"config"`
			}
			decodeBody(resp, &body)
			Expect(body.Rules).To(HaveLen(16))
			Expect(body.Config).To(HaveKeyWithValue("minimum_total", 1000.0))
		})
	})

	Describe("operational endpoints", func() {
		It("reports health", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("serves metrics", func() {
			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("go_goroutines"))
		})

		It("answers CORS preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/receipts/parse", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})
	})
})
