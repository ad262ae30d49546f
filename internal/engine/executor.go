package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/ports"
)

// handleValue is one resolved upstream input, tagged with the semantic
// handle it arrived on.
type handleValue struct {
	handle string
	value  string
}

// gatherInputs collects the resolved upstream outputs for a node, keyed by
// target handle. Edges whose source produced nothing are skipped.
func gatherInputs(g *domain.Graph, nodeID string, results map[string]string) []handleValue {
	var inputs []handleValue
	for _, edge := range g.Incoming(nodeID) {
		value, ok := results[edge.Source]
		if !ok || value == "" {
			continue
		}
		handle := edge.TargetHandle
		if handle == "" {
			handle = domain.HandleDefault
		}
		inputs = append(inputs, handleValue{handle: handle, value: value})
	}
	return inputs
}

func lookupHandle(inputs []handleValue, handle string) (string, bool) {
	for _, in := range inputs {
		if in.handle == handle {
			return in.value, true
		}
	}
	return "", false
}

// buildRequest assembles the external operation request for a processing
// node from its resolved upstream inputs. The returned map mirrors what was
// assembled, for the run history's input log.
func buildRequest(g *domain.Graph, node *domain.Node, results map[string]string) (ports.OperationRequest, map[string]any, error) {
	inputs := gatherInputs(g, node.ID, results)

	switch node.Kind {
	case domain.KindCrop:
		source, ok := lookupHandle(inputs, domain.HandleImageIn)
		if !ok {
			return ports.OperationRequest{}, nil, domain.NewOperationError(node.ID, "source image not ready")
		}
		req := ports.OperationRequest{
			Kind:     ports.OperationMediaCrop,
			InputURL: source,
			Params: ports.MediaParams{
				X:      node.Data.CropX,
				Y:      node.Data.CropY,
				Width:  cropDefault(node.Data.CropWidth),
				Height: cropDefault(node.Data.CropHeight),
			},
		}
		inputLog := map[string]any{"source": source, "params": req.Params}
		return req, inputLog, nil

	case domain.KindExtractFrame:
		source, ok := lookupHandle(inputs, domain.HandleVideoIn)
		if !ok {
			return ports.OperationRequest{}, nil, domain.NewOperationError(node.ID, "source video not ready")
		}
		timestamp := NormalizeTimestamp(node.Data.Timestamp)
		req := ports.OperationRequest{
			Kind:     ports.OperationMediaExtract,
			InputURL: source,
			Params:   ports.MediaParams{Timestamp: timestamp},
		}
		inputLog := map[string]any{"source": source, "timestamp": timestamp}
		return req, inputLog, nil

	case domain.KindLLM:
		system := node.Data.SystemPrompt
		if v, ok := lookupHandle(inputs, domain.HandleSystemPrompt); ok {
			system = v
		}
		prompt := node.Data.UserPrompt
		if v, ok := lookupHandle(inputs, domain.HandlePrompt); ok {
			prompt = v
		}
		images := gatherImages(inputs)
		if prompt == "" && len(images) > 0 {
			prompt = "Analyze this image"
		}
		req := ports.OperationRequest{
			Kind:   ports.OperationLLMGenerate,
			System: system,
			Prompt: prompt,
			Images: images,
			Model:  node.Data.Model,
		}
		inputLog := map[string]any{"system": system, "prompt": prompt, "images": images}
		return req, inputLog, nil

	default:
		return ports.OperationRequest{}, nil, domain.NewOperationError(node.ID, domain.ErrUnknownNodeKind.Error())
	}
}

// gatherImages returns the values of every image-prefixed handle, ordered by
// handle index so image-2 precedes image-10.
func gatherImages(inputs []handleValue) []string {
	var tagged []handleValue
	for _, in := range inputs {
		if strings.HasPrefix(in.handle, domain.HandleImagePrefix) {
			tagged = append(tagged, in)
		}
	}
	sort.SliceStable(tagged, func(i, j int) bool {
		return handleIndex(tagged[i].handle) < handleIndex(tagged[j].handle)
	})
	urls := make([]string, 0, len(tagged))
	for _, in := range tagged {
		urls = append(urls, in.value)
	}
	return urls
}

func handleIndex(handle string) int {
	idx := strings.LastIndexByte(handle, '-')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(handle[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// cropDefault keeps unset crop dimensions at the full 100% extent.
func cropDefault(v float64) float64 {
	if v <= 0 {
		return 100
	}
	return v
}

// NormalizeTimestamp accepts absolute seconds ("12.5") or a percentage
// ("50%"); anything unparsable collapses to "0".
func NormalizeTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return "0"
	}
	if strings.HasSuffix(ts, "%") {
		return ts
	}
	if _, err := strconv.ParseFloat(ts, 64); err != nil {
		return "0"
	}
	return ts
}
