package retrieval

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/google/uuid"
)

var (
	// ErrInvalidDocument is returned by Ingest for documents missing a type
	// or content.
	ErrInvalidDocument = errors.New("retrieval: invalid document")
	// ErrIngestDisabled reports that no knowledge base accepts documents.
	ErrIngestDisabled = errors.New("retrieval: knowledge base ingestion is not configured")
)

// IngestAPI is the part of the Bedrock agent client the ingester uses.
type IngestAPI interface {
	IngestKnowledgeBaseDocuments(ctx context.Context, in *bedrockagent.IngestKnowledgeBaseDocumentsInput, opts ...func(*bedrockagent.Options)) (*bedrockagent.IngestKnowledgeBaseDocumentsOutput, error)
}

// IngestDocument is a text document to add to the knowledge base.
type IngestDocument struct {
	ID       string            `json:"id,omitempty"` // Generated when empty.
	Type     string            `json:"type"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Ingested reports what the knowledge base accepted.
type Ingested struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata"`
	Status   string            `json:"status"`
}

// Ingester adds documents to a knowledge base.
type Ingester interface {
	Ingest(ctx context.Context, doc IngestDocument) (Ingested, error)
}

// KnowledgeBaseIngester writes inline text documents to a custom data source
// of a Bedrock knowledge base.
type KnowledgeBaseIngester struct {
	api          IngestAPI
	id           string
	dataSourceID string
}

// NewIngester creates an ingester with a static-credential client.
func NewIngester(cfg BedrockConfig) (*KnowledgeBaseIngester, error) {
	if cfg.KnowledgeBaseID == "" || cfg.DataSourceID == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("retrieval: ingestion needs knowledge_base_id, data_source_id, access_key and secret_key")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := bedrockagent.New(bedrockagent.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return NewIngesterWithAPI(client, cfg.KnowledgeBaseID, cfg.DataSourceID), nil
}

// NewIngesterWithAPI creates an ingester over an existing client.
func NewIngesterWithAPI(api IngestAPI, knowledgeBaseID, dataSourceID string) *KnowledgeBaseIngester {
	return &KnowledgeBaseIngester{api: api, id: knowledgeBaseID, dataSourceID: dataSourceID}
}

// Ingest implements Ingester. The title and type are stored as metadata
// attributes next to the caller's metadata.
func (k *KnowledgeBaseIngester) Ingest(ctx context.Context, doc IngestDocument) (Ingested, error) {
	if strings.TrimSpace(doc.Type) == "" {
		return Ingested{}, fmt.Errorf("%w: type is required", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return Ingested{}, fmt.Errorf("%w: content is required", ErrInvalidDocument)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	meta := make(map[string]string, len(doc.Metadata)+2)
	maps.Copy(meta, doc.Metadata)
	meta["type"] = doc.Type
	if doc.Title != "" {
		meta["title"] = doc.Title
	}

	attrs := make([]agenttypes.MetadataAttribute, 0, len(meta))
	for _, key := range slices.Sorted(maps.Keys(meta)) {
		attrs = append(attrs, agenttypes.MetadataAttribute{
			Key: aws.String(key),
			Value: &agenttypes.MetadataAttributeValue{
				Type:        agenttypes.MetadataValueTypeString,
				StringValue: aws.String(meta[key]),
			},
		})
	}

	out, err := k.api.IngestKnowledgeBaseDocuments(ctx, &bedrockagent.IngestKnowledgeBaseDocumentsInput{
		KnowledgeBaseId: aws.String(k.id),
		DataSourceId:    aws.String(k.dataSourceID),
		Documents: []agenttypes.KnowledgeBaseDocument{{
			Content: &agenttypes.DocumentContent{
				DataSourceType: agenttypes.ContentDataSourceTypeCustom,
				Custom: &agenttypes.CustomContent{
					CustomDocumentIdentifier: &agenttypes.CustomDocumentIdentifier{Id: aws.String(doc.ID)},
					SourceType:               agenttypes.CustomSourceTypeInLine,
					InlineContent: &agenttypes.InlineContent{
						Type:        agenttypes.InlineContentTypeText,
						TextContent: &agenttypes.TextContentDoc{Data: aws.String(doc.Content)},
					},
				},
			},
			Metadata: &agenttypes.DocumentMetadata{
				Type:             agenttypes.MetadataSourceTypeInLineAttribute,
				InlineAttributes: attrs,
			},
		}},
	})
	if err != nil {
		return Ingested{}, fmt.Errorf("retrieval: ingest %s: %w", doc.ID, err)
	}
	if len(out.DocumentDetails) == 0 {
		return Ingested{}, fmt.Errorf("retrieval: ingest %s: no document details returned", doc.ID)
	}

	detail := out.DocumentDetails[0]
	if detail.Status == agenttypes.DocumentStatusFailed {
		return Ingested{}, fmt.Errorf("retrieval: ingest %s failed: %s", doc.ID, aws.ToString(detail.StatusReason))
	}

	return Ingested{
		ID:       doc.ID,
		Type:     doc.Type,
		Title:    doc.Title,
		Metadata: meta,
		Status:   string(detail.Status),
	}, nil
}
