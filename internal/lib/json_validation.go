package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// ValidateJSON validates a JSON raw message against a given JSON schema.
// It returns a list of validation errors if the JSON is invalid.
func ValidateJSON(content json.RawMessage, schemaString string) ([]jsonschema.KeyError, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(schemaString), rs); err != nil {
		return nil, err
	}

	return rs.ValidateBytes(context.Background(), content)
}

// CommentCreateSchema describes a full comment document as written on create.
func CommentCreateSchema() string {
	return `{
		"type": "object",
		"properties": {
			"postId": {"type": "string"},
			"authorId": {"type": "string", "minLength": 1},
			"content": {"type": "string", "minLength": 1, "maxLength": 500},
			"parentId": {"type": "string"},
			"depth": {"type": "integer", "minimum": 0},
			"replyCount": {"type": "integer", "minimum": 0},
			"likeCount": {"type": "integer", "minimum": 0},
			"likedByUserIds": {"type": "array", "items": {"type": "string"}},
			"clientToken": {"type": "string"}
		},
		"required": ["authorId", "content"]
	}`
}

// CommentUpdateSchema describes a partial update; authorship can never change.
func CommentUpdateSchema() string {
	return `{
		"type": "object",
		"properties": {
			"content": {"type": "string", "minLength": 1, "maxLength": 500}
		},
		"not": {"required": ["authorId"]}
	}`
}

// ValidateFields checks fields against schemaString and reports every violation as
// one docstore.ErrInvalidArgument.
func ValidateFields(fields docstorepkg.Fields, schemaString string) error {
	content, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", docstorepkg.ErrInvalidArgument, err)
	}

	keyErrors, err := ValidateJSON(content, schemaString)
	if err != nil {
		return err
	}
	if len(keyErrors) == 0 {
		return nil
	}

	messages := make([]string, len(keyErrors))
	for i, keyError := range keyErrors {
		messages[i] = fmt.Sprintf("%s: %s", keyError.PropertyPath, keyError.Message)
	}
	return fmt.Errorf("%w: %s", docstorepkg.ErrInvalidArgument, strings.Join(messages, "; "))
}
