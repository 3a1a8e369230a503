package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
	"github.com/robfig/cron/v3"
)

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// manualTrigger is the entry point a client-initiated execution
// starts from. It carries no config and always succeeds.
func manualTrigger() integration.Descriptor {
	return integration.Descriptor{
		ID:       "manual_trigger",
		Name:     "Manual Trigger",
		Category: integration.CategoryTrigger,
		Version:  "1.0.0",
		Schema:   integration.Schema{},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"triggered": true,
					"timestamp": now(),
				},
			}, nil
		},
	}
}

// webhookTrigger records the inbound request shape a future
// webhook-receiving collaborator would hand this execution. By
// design, no server listens for the webhook itself here; this node
// only establishes the config contract and echoes it back as the
// trigger's recorded output when the workflow is run on demand.
func webhookTrigger() integration.Descriptor {
	return integration.Descriptor{
		ID:       "webhook_trigger",
		Name:     "Webhook Trigger",
		Category: integration.CategoryTrigger,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "path", Label: "Path", Type: integration.FieldText},
				{Key: "method", Label: "Method", Type: integration.FieldSelect, Options: []string{"GET", "POST", "PUT", "DELETE"}},
			},
			Required: []string{"path"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"path":      config["path"],
					"method":    config["method"],
					"timestamp": now(),
				},
			}, nil
		},
	}
}

// scheduleTrigger validates a cron expression at config-validation
// time. Like webhookTrigger, no live scheduler runs here — polling
// and scheduled launch points are deferred to a future collaborator.
func scheduleTrigger() integration.Descriptor {
	return integration.Descriptor{
		ID:       "schedule_trigger",
		Name:     "Schedule Trigger",
		Category: integration.CategoryTrigger,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "cron", Label: "Cron Expression", Type: integration.FieldText, Validate: validateCron},
			},
			Required: []string{"cron"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"cron":      config["cron"],
					"timestamp": now(),
				},
			}, nil
		},
	}
}

func validateCron(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("cron must be a string")
	}
	_, err := cron.ParseStandard(s)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
