package navagent

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/surfari-go/internal/toolfabric"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// echoRemoteSession stands in for a Remote Tool Session advertising a
// single "echo" tool, letting this test reach toolfabric.Fabric's
// exported registration path (RegisterRemote) rather than its
// package-private local-register helper.
type echoRemoteSession struct{}

func (echoRemoteSession) ListTools(ctx context.Context) ([]toolfabric.Declaration, error) {
	return []toolfabric.Declaration{{Name: "echo"}}, nil
}

func (echoRemoteSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error) {
	return args["text"], nil
}

func TestFabricExecutorExecuteToolReturnsJSONEncodedResult(t *testing.T) {
	fabric := toolfabric.New()
	if err := fabric.RegisterRemote(context.Background(), echoRemoteSession{}); err != nil {
		t.Fatalf("RegisterRemote: %v", err)
	}

	exec := FabricExecutor{Fabric: fabric}
	out, err := exec.ExecuteTool(context.Background(), models.ToolCall{
		ID:        "1",
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if out != `"hi"` {
		t.Fatalf("expected a JSON-encoded string, got %q", out)
	}
}

func TestFabricExecutorExecuteToolPropagatesNotFound(t *testing.T) {
	exec := FabricExecutor{Fabric: toolfabric.New()}
	_, err := exec.ExecuteTool(context.Background(), models.ToolCall{Name: "missing"})
	if err == nil {
		t.Fatalf("expected an error for an unregistered tool")
	}
}
