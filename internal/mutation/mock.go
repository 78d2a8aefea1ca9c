package mutation

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local edits when no mutation service is
// configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Mutate(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return Response{
			Explanation: "Tell me what you'd like to change on the page.",
		}, nil
	}

	doc := req.DocumentContext
	comment := fmt.Sprintf("<!-- edit: %s -->", instruction)
	if strings.Contains(doc, "</body>") {
		doc = strings.Replace(doc, "</body>", comment+"\n</body>", 1)
	} else {
		doc += "\n" + comment
	}

	return Response{
		Explanation:     fmt.Sprintf("Applied your request: %s", instruction),
		UpdatedDocument: doc,
		HasDocument:     true,
		EditCount:       1,
		SuggestedActions: []string{
			"Adjust the color scheme",
			"Tighten the headline copy",
		},
	}, nil
}
