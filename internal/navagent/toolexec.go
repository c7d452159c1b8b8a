package navagent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// FabricExecutor adapts a *toolfabric.Fabric's batch Execute call to the
// single-call ToolExecutor shape the turn loop dispatches against,
// mirroring how the original drives its merged native-plus-MCP tool
// registry one function call at a time inside the turn loop even though
// the registry itself supports dispatching many at once.
type FabricExecutor struct {
	Fabric *toolfabric.Fabric
	// Timeout bounds each call; zero uses toolfabric's own default.
	Timeout time.Duration
}

func (e FabricExecutor) ExecuteTool(ctx context.Context, call models.ToolCall) (string, error) {
	results := e.Fabric.Execute(ctx, []models.ToolCall{call}, toolfabric.ExecuteOptions{
		Timeout: e.Timeout,
	})
	if len(results) != 1 {
		return "", fmt.Errorf("navagent: expected 1 tool result, got %d", len(results))
	}
	result := results[0]
	if !result.OK {
		return "", fmt.Errorf("%s", result.Error)
	}
	encoded, err := json.Marshal(result.Result)
	if err != nil {
		return "", fmt.Errorf("navagent: encode tool result: %w", err)
	}
	return string(encoded), nil
}
