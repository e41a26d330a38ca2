package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
)

// ErrUnknownTool is returned by Decode for names outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Args is the typed argument record of one tool. Each tool has exactly one
// variant; the dispatcher switches on the concrete type.
type Args interface {
	Tool() string
}

// StringList accepts either a JSON array of strings or a single
// comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, scalarString(v))
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a list of strings")
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// FlexString accepts a JSON string, number or boolean.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexString(scalarString(v))
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

type AddElementArgs struct {
	Name  string     `json:"name" validate:"required"`
	Notes string     `json:"notes"`
	Tags  StringList `json:"tags"`
}

type UpdateElementArgs struct {
	Name    string     `json:"name" validate:"required"`
	NewName *string    `json:"newName"`
	Notes   *string    `json:"notes"`
	Tags    StringList `json:"tags"`
}

type DeleteElementArgs struct {
	Name string `json:"name" validate:"required"`
}

type AddRelationshipArgs struct {
	SourceName string     `json:"sourceName" validate:"required"`
	TargetName string     `json:"targetName" validate:"required"`
	Label      string     `json:"label"`
	Direction  string     `json:"direction"`
	Tags       StringList `json:"tags"`
}

type UpdateRelationshipArgs struct {
	SourceName string     `json:"sourceName" validate:"required"`
	TargetName string     `json:"targetName" validate:"required"`
	Label      *string    `json:"label"`
	Direction  *string    `json:"direction"`
	Tags       StringList `json:"tags"`
}

type DeleteRelationshipArgs struct {
	SourceName string `json:"sourceName" validate:"required"`
	TargetName string `json:"targetName" validate:"required"`
}

type SetElementAttributeArgs struct {
	ElementName string     `json:"elementName" validate:"required"`
	Key         string     `json:"key" validate:"required"`
	Value       FlexString `json:"value"`
}

type DeleteElementAttributeArgs struct {
	ElementName string `json:"elementName" validate:"required"`
	Key         string `json:"key" validate:"required"`
}

type SetRelationshipAttributeArgs struct {
	SourceName string     `json:"sourceName" validate:"required"`
	TargetName string     `json:"targetName" validate:"required"`
	Key        string     `json:"key" validate:"required"`
	Value      FlexString `json:"value"`
}

type DeleteRelationshipAttributeArgs struct {
	SourceName string `json:"sourceName" validate:"required"`
	TargetName string `json:"targetName" validate:"required"`
	Key        string `json:"key" validate:"required"`
}

type SearchNodesArgs struct {
	Query         string `json:"query"`
	Tag           string `json:"tag"`
	CreatedAfter  string `json:"createdAfter"`
	CreatedBefore string `json:"createdBefore"`
	UpdatedAfter  string `json:"updatedAfter"`
	UpdatedBefore string `json:"updatedBefore"`
}

type GetCurrentDateArgs struct{}

type ReadGraphArgs struct{}

type CreateDocumentArgs struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
	Folder  string `json:"folder"`
}

type ReadDocumentArgs struct {
	Title string `json:"title" validate:"required"`
}

type UpdateDocumentArgs struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

type DeleteDocumentArgs struct {
	Title string `json:"title" validate:"required"`
}

type CreateFolderArgs struct {
	Name   string `json:"name" validate:"required"`
	Parent string `json:"parent"`
}

type MoveDocumentArgs struct {
	Title  string `json:"title" validate:"required"`
	Folder string `json:"folder"`
}

type KanbanArgs struct {
	Action    string     `json:"action" validate:"required,oneof=createBoard addNode addToBoard moveNode findNodes listBoards"`
	BoardID   string     `json:"boardId"`
	BoardName string     `json:"boardName"`
	Columns   StringList `json:"columns"`
	NodeName  string     `json:"nodeName"`
	Column    string     `json:"column"`
}

type OpenToolArgs struct {
	Target string `json:"tool" validate:"required"`
}

func (AddElementArgs) Tool() string                  { return AddElement }
func (UpdateElementArgs) Tool() string               { return UpdateElement }
func (DeleteElementArgs) Tool() string               { return DeleteElement }
func (AddRelationshipArgs) Tool() string             { return AddRelationship }
func (UpdateRelationshipArgs) Tool() string          { return UpdateRelationship }
func (DeleteRelationshipArgs) Tool() string          { return DeleteRelationship }
func (SetElementAttributeArgs) Tool() string         { return SetElementAttribute }
func (DeleteElementAttributeArgs) Tool() string      { return DeleteElementAttribute }
func (SetRelationshipAttributeArgs) Tool() string    { return SetRelationshipAttribute }
func (DeleteRelationshipAttributeArgs) Tool() string { return DeleteRelationshipAttribute }
func (SearchNodesArgs) Tool() string                 { return SearchNodes }
func (GetCurrentDateArgs) Tool() string              { return GetCurrentDate }
func (ReadGraphArgs) Tool() string                   { return ReadGraph }
func (CreateDocumentArgs) Tool() string              { return CreateDocument }
func (ReadDocumentArgs) Tool() string                { return ReadDocument }
func (UpdateDocumentArgs) Tool() string              { return UpdateDocument }
func (DeleteDocumentArgs) Tool() string              { return DeleteDocument }
func (CreateFolderArgs) Tool() string                { return CreateFolder }
func (MoveDocumentArgs) Tool() string                { return MoveDocument }
func (KanbanArgs) Tool() string                      { return Kanban }
func (OpenToolArgs) Tool() string                    { return OpenTool }

var variants = map[string]func() Args{
	AddElement:                  func() Args { return &AddElementArgs{} },
	UpdateElement:               func() Args { return &UpdateElementArgs{} },
	DeleteElement:               func() Args { return &DeleteElementArgs{} },
	AddRelationship:             func() Args { return &AddRelationshipArgs{} },
	UpdateRelationship:          func() Args { return &UpdateRelationshipArgs{} },
	DeleteRelationship:          func() Args { return &DeleteRelationshipArgs{} },
	SetElementAttribute:         func() Args { return &SetElementAttributeArgs{} },
	DeleteElementAttribute:      func() Args { return &DeleteElementAttributeArgs{} },
	SetRelationshipAttribute:    func() Args { return &SetRelationshipAttributeArgs{} },
	DeleteRelationshipAttribute: func() Args { return &DeleteRelationshipAttributeArgs{} },
	SearchNodes:                 func() Args { return &SearchNodesArgs{} },
	GetCurrentDate:              func() Args { return &GetCurrentDateArgs{} },
	ReadGraph:                   func() Args { return &ReadGraphArgs{} },
	CreateDocument:              func() Args { return &CreateDocumentArgs{} },
	ReadDocument:                func() Args { return &ReadDocumentArgs{} },
	UpdateDocument:              func() Args { return &UpdateDocumentArgs{} },
	DeleteDocument:              func() Args { return &DeleteDocumentArgs{} },
	CreateFolder:                func() Args { return &CreateFolderArgs{} },
	MoveDocument:                func() Args { return &MoveDocumentArgs{} },
	Kanban:                      func() Args { return &KanbanArgs{} },
	OpenTool:                    func() Args { return &OpenToolArgs{} },
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Decode turns a loosely-typed argument map into the tool's typed record. A
// nil map decodes as empty. Missing required fields and shape mismatches are
// validation errors.
func Decode(name string, raw map[string]any) (Args, error) {
	newArgs, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	args := newArgs()
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("%s: arguments are not serializable: %v", name, err)
	}
	if err := json.Unmarshal(data, args); err != nil {
		return nil, apperrors.NewValidationError("%s: invalid arguments: %v", name, err)
	}
	if err := getValidator().Struct(args); err != nil {
		return nil, validationError(name, err)
	}
	return args, nil
}

func validationError(tool string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("%s: %v", tool, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperrors.NewValidationError("%s: %s", tool, strings.Join(msgs, "; "))
}

// ParseParameters decodes the JSON-encoded parameters string of a model
// action. Broken JSON is repaired when possible; anything that still does not
// decode to an object yields an empty map.
func ParseParameters(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err == nil && m != nil {
		return m
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return map[string]any{}
	}
	if err := json.Unmarshal([]byte(repaired), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
