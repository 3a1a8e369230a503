package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/loomwork/loom/internal/expression"
	"github.com/loomwork/loom/internal/integration"
)

// delay suspends the executing goroutine for amount*unit, honoring
// ctx cancellation. Integrations are trusted: the Engine imposes no
// timeout of its own.
func delay() integration.Descriptor {
	return integration.Descriptor{
		ID:       "delay",
		Name:     "Delay",
		Category: integration.CategoryAction,
		Version:  "1.0.0",
		Schema: integration.Schema{
			Fields: []integration.SchemaField{
				{Key: "amount", Label: "Amount", Type: integration.FieldNumber},
				{Key: "unit", Label: "Unit", Type: integration.FieldSelect, Options: []string{"seconds", "minutes", "hours"}},
			},
			Required: []string{"amount", "unit"},
		},
		Execute: func(ctx context.Context, config map[string]interface{}, wfCtx *expression.Context) (*integration.Result, error) {
			d, err := delayDuration(config)
			if err != nil {
				return nil, err
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &integration.Result{
				Success: true,
				Data: map[string]interface{}{
					"delayedMs": d.Milliseconds(),
					"timestamp": now(),
				},
			}, nil
		},
	}
}

func delayDuration(config map[string]interface{}) (time.Duration, error) {
	amount, ok := toFloat(config["amount"])
	if !ok {
		return 0, fmt.Errorf("delay: amount must be a number")
	}
	unit, _ := config["unit"].(string)
	var base time.Duration
	switch unit {
	case "seconds", "":
		base = time.Second
	case "minutes":
		base = time.Minute
	case "hours":
		base = time.Hour
	default:
		return 0, fmt.Errorf("delay: unknown unit %q", unit)
	}
	return time.Duration(amount * float64(base)), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
