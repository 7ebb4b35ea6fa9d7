package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var ErrInvalidRequest = errors.New("invalid request")

const progressSchemaURL = "https://tarkovtracker.org/schemas/progress_request.schema.json"

var compileProgressSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile("schemas/progress_request.schema.json")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(progressSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return c.Compile(progressSchemaURL)
})

// DecodeProgressRequest validates raw against the progress request schema
// and decodes it. Validation failures wrap ErrInvalidRequest.
func DecodeProgressRequest(raw []byte) (ProgressRequest, error) {
	var req ProgressRequest
	schema, err := compileProgressSchema()
	if err != nil {
		return req, fmt.Errorf("compile progress schema: %w", err)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := schema.Validate(v); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.ProtocolVersion != "" && req.ProtocolVersion != Version {
		return req, fmt.Errorf("%w: protocol_version %q", ErrInvalidRequest, req.ProtocolVersion)
	}
	return req, nil
}
