package core

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// requestShape is what an operation contributes on top of the shared
// authorization header and base url.
type requestShape struct {
	method       string
	path         string
	headers      map[string]string
	body         []byte
	fullEnvelope bool
}

type buildFunc func(fields Fields) requestShape

type normalizeFunc func(fields Fields, res TransportResponse) (Response, error)

type operation struct {
	descriptor OperationDescriptor
	build      buildFunc
	normalize  normalizeFunc
}

var operationTable = newOperationTable(
	// vault
	operation{
		descriptor: describe(ResourceVault, OperationListFiles, http.MethodGet, "/vault/{directoryPath}/", false),
		build: func(f Fields) requestShape {
			dir := strings.Trim(strings.TrimSpace(f.DirectoryPath), "/")
			if dir == "" {
				return requestShape{method: http.MethodGet, path: "/vault/"}
			}
			return requestShape{method: http.MethodGet, path: "/vault/" + escapePath(dir) + "/"}
		},
		normalize: decodeJSONResponse,
	},
	operation{
		descriptor: describe(ResourceVault, OperationReadFile, http.MethodGet, "/vault/{filePath}", false),
		build: func(f Fields) requestShape {
			shape := requestShape{
				method:       http.MethodGet,
				path:         vaultFilePath(f.FilePath),
				fullEnvelope: !f.ReturnJSON,
			}
			if f.ReturnJSON {
				shape.headers = map[string]string{HeaderAccept: MediaTypeNoteJSON}
			}
			return shape
		},
		normalize: normalizeReadFile,
	},
	operation{
		descriptor: describe(ResourceVault, OperationCreateFile, http.MethodPut, "/vault/{filePath}", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPut, vaultFilePath(f.FilePath), f.Content)
		},
		normalize: func(f Fields, res TransportResponse) (Response, error) {
			return AckResponse(res.StatusCode, "path", f.FilePath), nil
		},
	},
	operation{
		descriptor: describe(ResourceVault, OperationAppendFile, http.MethodPost, "/vault/{filePath}", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPost, vaultFilePath(f.FilePath), f.Content)
		},
		normalize: func(f Fields, res TransportResponse) (Response, error) {
			return AckResponse(res.StatusCode, "path", f.FilePath), nil
		},
	},
	operation{
		descriptor: describe(ResourceVault, OperationDeleteFile, http.MethodDelete, "/vault/{filePath}", true),
		build: func(f Fields) requestShape {
			return requestShape{method: http.MethodDelete, path: vaultFilePath(f.FilePath)}
		},
		normalize: func(f Fields, res TransportResponse) (Response, error) {
			return AckResponse(res.StatusCode, "deleted", f.FilePath), nil
		},
	},

	// active file
	operation{
		descriptor: describe(ResourceActiveFile, OperationGet, http.MethodGet, "/active/", false),
		build: func(Fields) requestShape {
			return noteJSONRead("/active/")
		},
		normalize: decodeJSONResponse,
	},
	operation{
		descriptor: describe(ResourceActiveFile, OperationUpdate, http.MethodPut, "/active/", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPut, "/active/", f.Content)
		},
		normalize: plainAck,
	},
	operation{
		descriptor: describe(ResourceActiveFile, OperationAppend, http.MethodPost, "/active/", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPost, "/active/", f.Content)
		},
		normalize: plainAck,
	},
	operation{
		descriptor: describe(ResourceActiveFile, OperationDelete, http.MethodDelete, "/active/", true),
		build: func(Fields) requestShape {
			return requestShape{method: http.MethodDelete, path: "/active/"}
		},
		normalize: plainAck,
	},

	// search
	operation{
		descriptor: describe(ResourceSearch, OperationSimpleSearch, http.MethodPost, "/search/simple/", false),
		build: func(f Fields) requestShape {
			return textPost("/search/simple/", MediaTypePlainText, f.Query)
		},
		normalize: decodeJSONResponse,
	},
	operation{
		descriptor: describe(ResourceSearch, OperationDataviewQuery, http.MethodPost, "/search/", false),
		build: func(f Fields) requestShape {
			query := f.DataviewQuery
			if strings.TrimSpace(query) == "" {
				query = f.Query
			}
			return textPost("/search/", MediaTypeDataviewDQL, query)
		},
		normalize: decodeJSONResponse,
	},

	// commands
	operation{
		descriptor: describe(ResourceCommand, OperationListCommands, http.MethodGet, "/commands/", false),
		build: func(Fields) requestShape {
			return requestShape{method: http.MethodGet, path: "/commands/"}
		},
		normalize: decodeJSONResponse,
	},
	operation{
		descriptor: describe(ResourceCommand, OperationExecuteCommand, http.MethodPost, "/commands/{commandId}/", true),
		build: func(f Fields) requestShape {
			return requestShape{
				method: http.MethodPost,
				path:   "/commands/" + url.PathEscape(strings.TrimSpace(f.CommandID)) + "/",
			}
		},
		normalize: func(f Fields, res TransportResponse) (Response, error) {
			return AckResponse(res.StatusCode, "command", f.CommandID), nil
		},
	},

	// periodic notes
	operation{
		descriptor: describe(ResourcePeriodicNote, OperationGet, http.MethodGet, "/periodic/{period}/", false),
		build: func(f Fields) requestShape {
			return noteJSONRead(periodicPath(f.Period))
		},
		normalize: decodeJSONResponse,
	},
	operation{
		descriptor: describe(ResourcePeriodicNote, OperationUpdate, http.MethodPut, "/periodic/{period}/", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPut, periodicPath(f.Period), f.Content)
		},
		normalize: plainAck,
	},
	operation{
		descriptor: describe(ResourcePeriodicNote, OperationAppend, http.MethodPost, "/periodic/{period}/", true),
		build: func(f Fields) requestShape {
			return markdownWrite(http.MethodPost, periodicPath(f.Period), f.Content)
		},
		normalize: plainAck,
	},

	// system
	operation{
		descriptor: describe(ResourceSystem, OperationGetStatus, http.MethodGet, "/", false),
		build: func(Fields) requestShape {
			return requestShape{method: http.MethodGet, path: "/"}
		},
		normalize: decodeJSONResponse,
	},
)

func newOperationTable(ops ...operation) map[OperationKey]operation {
	table := make(map[OperationKey]operation, len(ops))
	for _, op := range ops {
		table[Key(op.descriptor.Resource, op.descriptor.Operation)] = op
	}
	return table
}

func describe(resource Resource, op Operation, method string, pathTemplate string, mutating bool) OperationDescriptor {
	return OperationDescriptor{
		Resource:     resource,
		Operation:    op,
		Method:       method,
		PathTemplate: pathTemplate,
		Mutating:     mutating,
	}
}

func markdownWrite(method string, path string, content string) requestShape {
	return requestShape{
		method:  method,
		path:    path,
		headers: map[string]string{HeaderContentType: MediaTypeMarkdown},
		body:    []byte(content),
	}
}

func textPost(path string, contentType string, text string) requestShape {
	return requestShape{
		method:  http.MethodPost,
		path:    path,
		headers: map[string]string{HeaderContentType: contentType},
		body:    []byte(text),
	}
}

func noteJSONRead(path string) requestShape {
	return requestShape{
		method:  http.MethodGet,
		path:    path,
		headers: map[string]string{HeaderAccept: MediaTypeNoteJSON},
	}
}

func vaultFilePath(filePath string) string {
	return "/vault/" + escapePath(strings.TrimLeft(strings.TrimSpace(filePath), "/"))
}

func periodicPath(period Period) string {
	return "/periodic/" + url.PathEscape(strings.TrimSpace(string(period))) + "/"
}

// escapePath escapes each segment while keeping the separators.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// Operations lists the dispatch table sorted by resource then operation.
func Operations() []OperationDescriptor {
	out := make([]OperationDescriptor, 0, len(operationTable))
	for _, op := range operationTable {
		out = append(out, op.descriptor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}

func Supports(key OperationKey) bool {
	_, ok := operationTable[key]
	return ok
}

// Dispatcher maps one (resource, operation) pair and item fields onto a
// single transport call.
type Dispatcher struct {
	transport TransportAdapter
}

func NewDispatcher(transport TransportAdapter) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// Build resolves the request without performing it.
func (d *Dispatcher) Build(key OperationKey, fields Fields, creds Credentials) (RequestSpec, error) {
	op, ok := operationTable[key]
	if !ok {
		return RequestSpec{}, unsupportedOperationError(key)
	}
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return RequestSpec{}, credentialsError(err)
	}

	shape := op.build(fields)
	headers := make(map[string]string, len(shape.headers)+1)
	for name, value := range shape.headers {
		headers[name] = value
	}
	headers[HeaderAuthorization] = creds.AuthorizationHeader()

	return RequestSpec{
		Method:             shape.method,
		URL:                creds.BaseURL + shape.path,
		Path:               shape.path,
		Headers:            headers,
		Body:               shape.body,
		VerifyTLS:          !creds.IgnoreTLSErrors,
		ReturnFullEnvelope: shape.fullEnvelope,
	}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, key OperationKey, fields Fields, creds Credentials) (Response, error) {
	res, _, err := d.dispatch(ctx, key, fields, creds)
	return res, err
}

func (d *Dispatcher) dispatch(
	ctx context.Context,
	key OperationKey,
	fields Fields,
	creds Credentials,
) (Response, RequestSpec, error) {
	if d == nil || d.transport == nil {
		return Response{}, RequestSpec{}, dependencyError("core: dispatcher requires a transport adapter")
	}
	spec, err := d.Build(key, fields, creds)
	if err != nil {
		return Response{}, RequestSpec{}, err
	}
	raw, err := d.transport.Do(ctx, spec.TransportRequest())
	if err != nil {
		return Response{}, spec, err
	}
	res, err := operationTable[key].normalize(fields, raw)
	if err != nil {
		return Response{}, spec, err
	}
	return res, spec, nil
}
