package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// apiRequest issues an outbound HTTP call with the node's already
// hydrated url/method/headers/body. It is bounded only by the calling
// context; the Engine imposes no timeout of its own.
func apiRequest() integration.Descriptor {
	client := &http.Client{}
	return integration.Descriptor{
		ID:       "api_request",
		Name:     "API Request",
		Category: integration.CategoryAction,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "url", Label: "URL", Type: integration.FieldURL, SupportExpressions: true},
				{Key: "method", Label: "Method", Type: integration.FieldSelect, Options: []string{"GET", "POST", "PUT", "PATCH", "DELETE"}},
				{Key: "body", Label: "Body", Type: integration.FieldTextarea, SupportExpressions: true},
			},
			Required: []string{"url"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			url, _ := config["url"].(string)
			if url == "" {
				return nil, fmt.Errorf("api_request: url is required")
			}
			method, _ := config["method"].(string)
			if method == "" {
				method = http.MethodGet
			}
			body, _ := config["body"].(string)

			req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bytes.NewBufferString(body))
			if err != nil {
				return nil, fmt.Errorf("api_request: building request: %w", err)
			}
			if body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("api_request: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
			if err != nil {
				return nil, fmt.Errorf("api_request: reading response: %w", err)
			}

			return &integration.Result{
				Success: resp.StatusCode < 400,
				Data: map[string]interface{}{
					"statusCode": resp.StatusCode,
					"body":       string(respBody),
					"timestamp":  time.Now().UTC().Format(time.RFC3339),
				},
			}, nil
		},
	}
}
