package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	xerrors "github.com/standardbeagle/codeix/internal/errors"
)

// jsonResponse marshals data into one text content block.
func jsonResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// textResponse wraps a preformatted string.
func textResponse(text string) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

// errorResponse reports a tool failure inside the result, per the MCP
// contract, with the structured code callers dispatch on.
func errorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	code := xerrors.CodeInternal
	var qe *xerrors.QueryError
	var se *xerrors.SchemaError
	switch {
	case errors.As(err, &qe):
		code = qe.Type.Code()
	case errors.As(err, &se):
		code = xerrors.CodeInternal
	}

	payload := map[string]interface{}{
		"error":     err.Error(),
		"code":      code,
		"operation": operation,
	}
	content, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, marshalErr
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// invalidParams reports an argument decode failure.
func invalidParams(operation string, err error) (*mcp.CallToolResult, error) {
	return errorResponse(operation,
		xerrors.NewQueryError(xerrors.ErrorTypeInvalidQuery, "invalid parameters: %v", err))
}
