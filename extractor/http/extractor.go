// Package http sends uploaded documents to a remote extraction service as
// multipart form data and reads back the extraction document.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/w-h-a/medimate/extractor"
	"github.com/w-h-a/medimate/prescription"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type httpExtractor struct {
	options extractor.Options
	client  *http.Client
}

func (e *httpExtractor) Extract(ctx context.Context, filename string, r io.Reader) (prescription.Extraction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	partWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return prescription.Extraction{}, err
	}

	if _, err := io.Copy(partWriter, r); err != nil {
		return prescription.Extraction{}, err
	}

	if err := writer.Close(); err != nil {
		return prescription.Extraction{}, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/extract", e.options.Location),
		body,
	)
	if err != nil {
		return prescription.Extraction{}, err
	}

	req.Header.Add("Content-Type", writer.FormDataContentType())

	if len(e.options.ApiKey) > 0 {
		req.Header.Add("Authorization", "Bearer "+e.options.ApiKey)
	}

	rsp, err := e.client.Do(req)
	if err != nil {
		return prescription.Extraction{}, err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode >= 400 {
		return prescription.Extraction{}, fmt.Errorf("status: %s", rsp.Status)
	}

	bs, err := io.ReadAll(rsp.Body)
	if err != nil {
		return prescription.Extraction{}, err
	}

	return extractor.Decode(bs)
}

func NewExtractor(opts ...extractor.Option) extractor.Extractor {
	options := extractor.NewOptions(opts...)

	client := options.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		}
	}

	return &httpExtractor{
		options: options,
		client:  client,
	}
}
