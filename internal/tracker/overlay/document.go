package overlay

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidDocument = errors.New("invalid overlay document")

// Patches maps an entity id to a partial object merged into that entity.
type Patches map[string]map[string]any

type Meta struct {
	Version   string `json:"version"`
	Generated string `json:"generated,omitempty"`
	Hash      string `json:"sha256,omitempty"`
}

// Document is a versioned correction set for upstream data.
type Document struct {
	Meta     Meta    `json:"$meta"`
	Tasks    Patches `json:"tasks,omitempty"`
	TasksAdd Patches `json:"tasksAdd,omitempty"`
	Items    Patches `json:"items,omitempty"`
	Traders  Patches `json:"traders,omitempty"`
	Hideout  Patches `json:"hideout,omitempty"`
}

const schemaURL = "https://tarkovtracker.org/schemas/overlay.schema.json"

//go:embed overlay.schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// ParseDocument validates raw against the overlay schema and decodes it.
// The returned hash is the $meta.sha256 value when present, otherwise the
// sha256 of raw.
func ParseDocument(raw []byte) (*Document, string, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, "", fmt.Errorf("compile overlay schema: %w", err)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	hash := doc.Meta.Hash
	if hash == "" {
		sum := sha256.Sum256(raw)
		hash = hex.EncodeToString(sum[:])
	}
	return &doc, hash, nil
}
