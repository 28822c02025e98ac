package core

import (
	"bytes"
	"encoding/json"
)

// decodeJSONResponse parses the body as JSON. An empty body becomes an empty
// object and a body that is not JSON is wrapped as {content: text}.
func decodeJSONResponse(_ Fields, res TransportResponse) (Response, error) {
	return JSONResponse(decodeBody(res.Body), res.StatusCode), nil
}

func normalizeReadFile(fields Fields, res TransportResponse) (Response, error) {
	if fields.ReturnJSON {
		return decodeJSONResponse(fields, res)
	}
	return ContentResponse(string(res.Body), res.StatusCode), nil
}

func plainAck(_ Fields, res TransportResponse) (Response, error) {
	return AckResponse(res.StatusCode), nil
}

func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return map[string]any{"content": string(body)}
	}
	if decoded == nil {
		return map[string]any{}
	}
	return decoded
}
