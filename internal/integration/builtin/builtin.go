// Package builtin registers the built-in Integration Descriptors a
// conforming implementation must ship. Each file here implements one
// integration; All returns the full set for a caller (cmd/api,
// cmd/worker) to register against an explicit Registry.
package builtin

import "github.com/loomwork/loom/internal/integration"

// All returns every built-in Descriptor. Callers register them into
// their own Registry instance; nothing here is registered globally.
func All() []integration.Descriptor {
	return []integration.Descriptor{
		manualTrigger(),
		webhookTrigger(),
		scheduleTrigger(),
		setVariable(),
		delay(),
		branchCondition(),
		filterCondition(),
		transformData(),
		apiRequest(),
	}
}
