package core

import (
	"fmt"
	"strings"
)

type Resource string

const (
	ResourceVault        Resource = "vault"
	ResourceActiveFile   Resource = "activeFile"
	ResourceSearch       Resource = "search"
	ResourceCommand      Resource = "command"
	ResourcePeriodicNote Resource = "periodicNote"
	ResourceSystem       Resource = "system"
)

type Operation string

const (
	OperationListFiles      Operation = "listFiles"
	OperationReadFile       Operation = "readFile"
	OperationCreateFile     Operation = "createFile"
	OperationAppendFile     Operation = "appendFile"
	OperationDeleteFile     Operation = "deleteFile"
	OperationGet            Operation = "get"
	OperationUpdate         Operation = "update"
	OperationAppend         Operation = "append"
	OperationDelete         Operation = "delete"
	OperationSimpleSearch   Operation = "simpleSearch"
	OperationDataviewQuery  Operation = "dataviewQuery"
	OperationListCommands   Operation = "listCommands"
	OperationExecuteCommand Operation = "executeCommand"
	OperationGetStatus      Operation = "getStatus"
)

// OperationKey identifies one row of the dispatch table.
type OperationKey struct {
	Resource  Resource
	Operation Operation
}

func Key(resource Resource, operation Operation) OperationKey {
	return OperationKey{Resource: resource, Operation: operation}
}

func (k OperationKey) String() string {
	return string(k.Resource) + "." + string(k.Operation)
}

type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly}
}

const (
	HeaderAuthorization = "Authorization"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"

	MediaTypeNoteJSON    = "application/vnd.olrapi.note+json"
	MediaTypeMarkdown    = "text/markdown"
	MediaTypePlainText   = "text/plain"
	MediaTypeDataviewDQL = "application/vnd.olrapi.dataview.dql+txt"
	DefaultVaultBaseURL  = "https://127.0.0.1:27124"
	authorizationScheme  = "Bearer "
)

// Credentials are resolved once per batch and treated as read-only.
type Credentials struct {
	BaseURL         string
	APIKey          string
	IgnoreTLSErrors bool
}

// Normalize trims whitespace and a single trailing slash from the base url.
func (c Credentials) Normalize() Credentials {
	out := c
	out.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	out.APIKey = strings.TrimSpace(c.APIKey)
	return out
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("core: credentials base url is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("core: credentials api key is required")
	}
	return nil
}

func (c Credentials) AuthorizationHeader() string {
	return authorizationScheme + c.APIKey
}

// String never includes the api key.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{BaseURL:%q, APIKey:%s, IgnoreTLSErrors:%t}", c.BaseURL, RedactedValue, c.IgnoreTLSErrors)
}

// Fields are the per-item scoped inputs. Which ones are read depends on the
// operation.
type Fields struct {
	FilePath      string `json:"filePath,omitempty"`
	Content       string `json:"content,omitempty"`
	Query         string `json:"query,omitempty"`
	DataviewQuery string `json:"dataviewQuery,omitempty"`
	CommandID     string `json:"commandId,omitempty"`
	Period        Period `json:"period,omitempty"`
	DirectoryPath string `json:"directoryPath,omitempty"`
	ReturnJSON    bool   `json:"returnJson,omitempty"`
}

// RequestSpec is the fully resolved outbound request for a single item. A
// nil Body means the request carries no body.
type RequestSpec struct {
	Method             string
	URL                string
	Path               string
	Headers            map[string]string
	Body               []byte
	VerifyTLS          bool
	ReturnFullEnvelope bool
}

func (r RequestSpec) HasBody() bool {
	return r.Body != nil
}

func (r RequestSpec) TransportRequest() TransportRequest {
	var body []byte
	if r.Body != nil {
		body = append([]byte{}, r.Body...)
	}
	return TransportRequest{
		Method:              r.Method,
		URL:                 r.URL,
		Headers:             cloneHeaders(r.Headers),
		Body:                body,
		SkipTLSVerification: !r.VerifyTLS,
		ReturnFullEnvelope:  r.ReturnFullEnvelope,
	}
}

type ResponseKind string

const (
	ResponseKindJSON    ResponseKind = "json"
	ResponseKindContent ResponseKind = "content"
	ResponseKindAck     ResponseKind = "ack"
)

// Response is the normalized result of one dispatch. Exactly one of the
// variant fields is meaningful, selected by Kind.
type Response struct {
	Kind       ResponseKind
	Body       any
	Content    string
	Ack        map[string]any
	StatusCode int
}

func JSONResponse(body any, statusCode int) Response {
	return Response{Kind: ResponseKindJSON, Body: body, StatusCode: statusCode}
}

func ContentResponse(content string, statusCode int) Response {
	return Response{Kind: ResponseKindContent, Content: content, StatusCode: statusCode}
}

func AckResponse(statusCode int, pairs ...any) Response {
	ack := map[string]any{"success": true}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		ack[key] = pairs[i+1]
	}
	return Response{Kind: ResponseKindAck, Ack: ack, StatusCode: statusCode}
}

// JSON renders the record value handed to callers.
func (r Response) JSON() any {
	switch r.Kind {
	case ResponseKindContent:
		return map[string]any{"content": r.Content}
	case ResponseKindAck:
		return cloneFields(r.Ack)
	default:
		if r.Body == nil {
			return map[string]any{}
		}
		return r.Body
	}
}

// ResultRecord is one output entry. ItemIndex is the zero-based position of
// the input item the record belongs to.
type ResultRecord struct {
	ItemIndex int
	JSON      any
	Error     string
}

func (r ResultRecord) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}

// Batch shares one resource/operation pair across all items; only the
// fields vary per item.
type Batch struct {
	Resource       Resource
	Operation      Operation
	Items          []Fields
	ContinueOnFail *bool
}

func (b Batch) Key() OperationKey {
	return Key(b.Resource, b.Operation)
}

func (b Batch) Validate() error {
	if strings.TrimSpace(string(b.Resource)) == "" {
		return fmt.Errorf("core: batch resource is required")
	}
	if strings.TrimSpace(string(b.Operation)) == "" {
		return fmt.Errorf("core: batch operation is required")
	}
	return nil
}

type BatchResult struct {
	BatchID string
	Key     OperationKey
	Records []ResultRecord
	Failed  int
}

// OperationDescriptor documents one dispatch table row.
type OperationDescriptor struct {
	Resource     Resource
	Operation    Operation
	Method       string
	PathTemplate string
	Mutating     bool
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}
