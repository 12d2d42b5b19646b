package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaRegistry compiles and caches the request envelope schema plus a
// per-method params schema, mirroring ws_schema.go's approach of validating
// both the envelope and the method-specific payload before a handler ever
// sees it.
type schemaRegistry struct {
	once    sync.Once
	initErr error
	request *jsonschema.Schema
	methods map[string]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		reqSchema, err := jsonschema.CompileString("req_frame", reqFrameSchema)
		if err != nil {
			schemas.initErr = err
			return
		}
		schemas.request = reqSchema

		methods := map[string]string{
			"connect":        connectParamsSchema,
			"chat.send":      chatSendParamsSchema,
			"tool.invoke":    toolInvokeParamsSchema,
			"session.patch":  sessionPatchParamsSchema,
			"cron.add":       cronAddParamsSchema,
			"config.set":     configSetParamsSchema,
		}
		schemas.methods = make(map[string]*jsonschema.Schema, len(methods))
		for name, src := range methods {
			compiled, err := jsonschema.CompileString("method_"+name, src)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.methods[name] = compiled
		}
	})
	return schemas.initErr
}

// ValidateFrame checks the req envelope, then (if a schema is registered
// for the method) the params payload.
func ValidateFrame(frame *ReqFrame) error {
	if err := initSchemas(); err != nil {
		return err
	}
	var asAny any
	encoded, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(encoded, &asAny); err != nil {
		return err
	}
	if err := schemas.request.Validate(asAny); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	schema, ok := schemas.methods[frame.Method]
	if !ok {
		return nil
	}
	var params any
	if len(frame.Params) == 0 {
		params = map[string]any{}
	} else if err := json.Unmarshal(frame.Params, &params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if err := schema.Validate(params); err != nil {
		return fmt.Errorf("invalid params for %s: %w", frame.Method, err)
	}
	return nil
}

const reqFrameSchema = `{
  "type": "object",
  "required": ["type", "id", "method"],
  "properties": {
    "type": { "const": "req" },
    "id": { "type": "string", "minLength": 1 },
    "method": { "type": "string", "minLength": 1 },
    "params": {}
  },
  "additionalProperties": true
}`

const connectParamsSchema = `{
  "type": "object",
  "required": ["minProtocol", "client"],
  "properties": {
    "minProtocol": { "type": "integer", "minimum": 1 },
    "client": {
      "type": "object",
      "required": ["mode", "id"],
      "properties": {
        "mode": { "enum": ["client", "node", "channel"] },
        "id": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": true
    },
    "tools": { "type": "array" },
    "nodeRuntime": { "type": "object" }
  },
  "additionalProperties": true
}`

const chatSendParamsSchema = `{
  "type": "object",
  "required": ["sessionKey", "text", "runId"],
  "properties": {
    "sessionKey": { "type": "string", "minLength": 1 },
    "text": { "type": "string" },
    "runId": { "type": "string", "minLength": 1 },
    "overrides": { "type": "object" },
    "media": { "type": "array" }
  },
  "additionalProperties": true
}`

const toolInvokeParamsSchema = `{
  "type": "object",
  "required": ["tool"],
  "properties": {
    "tool": { "type": "string", "minLength": 1 },
    "args": {}
  },
  "additionalProperties": true
}`

const sessionPatchParamsSchema = `{
  "type": "object",
  "required": ["sessionKey"],
  "properties": {
    "sessionKey": { "type": "string", "minLength": 1 },
    "settings": { "type": "object" },
    "label": { "type": "string" },
    "resetPolicy": { "type": "object" }
  },
  "additionalProperties": true
}`

const cronAddParamsSchema = `{
  "type": "object",
  "required": ["name", "agentId", "schedule", "spec"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "agentId": { "type": "string", "minLength": 1 },
    "schedule": { "type": "object" },
    "spec": { "type": "object" },
    "enabled": { "type": "boolean" }
  },
  "additionalProperties": true
}`

const configSetParamsSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": { "type": "string", "minLength": 1 },
    "value": {}
  },
  "additionalProperties": true
}`
