package engine

import (
	"strings"

	"github.com/eleven-am/strand/internal/domain"
)

// ApplyLatestRun reconciles the newest persisted run back into live node
// state. The run log is authoritative; node status, error message and cached
// outputs on the graph are a derived cache of it. Runs are expected
// newest-first, as HistoryStore.History returns them.
func ApplyLatestRun(g *domain.Graph, runs []domain.Run) {
	if len(runs) == 0 {
		return
	}
	latest := runs[0]
	for _, exec := range latest.NodeExecutions {
		node, ok := g.Node(exec.NodeID)
		if !ok {
			continue
		}

		node.Data.Status = exec.Status
		node.Data.ErrorMessage = exec.ErrorMessage

		applyOutput(node, exec.OutputData)
	}
}

func applyOutput(node *domain.Node, output map[string]any) {
	if output == nil {
		return
	}

	if text, ok := output["text"].(string); ok && text != "" {
		node.Data.Response = text
	}
	if url, ok := output["url"].(string); ok && url != "" {
		node.Data.OutputURL = url
	}
	if result, ok := output["result"].(string); ok && result != "" {
		if strings.HasPrefix(result, "http") {
			node.Data.OutputURL = result
		} else {
			node.Data.Response = result
		}
	}
}
