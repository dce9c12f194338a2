package retrieval

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// RetrieveAPI is the part of the Bedrock agent runtime client the retriever uses.
type RetrieveAPI interface {
	Retrieve(ctx context.Context, in *bedrockagentruntime.RetrieveInput, opts ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// BedrockConfig holds knowledge base settings.
type BedrockConfig struct {
	KnowledgeBaseID string `yaml:"knowledge_base_id"`
	DataSourceID    string `yaml:"data_source_id"` // Custom data source that receives ingested documents.
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Region          string `yaml:"region"`
}

// KnowledgeBase retrieves passages from an AWS Bedrock knowledge base.
type KnowledgeBase struct {
	api RetrieveAPI
	id  string
}

// NewKnowledgeBase creates a retriever with a static-credential client.
func NewKnowledgeBase(cfg BedrockConfig) (*KnowledgeBase, error) {
	if cfg.KnowledgeBaseID == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("retrieval: bedrock needs knowledge_base_id, access_key and secret_key")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := bedrockagentruntime.New(bedrockagentruntime.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return NewKnowledgeBaseWithAPI(client, cfg.KnowledgeBaseID), nil
}

// NewKnowledgeBaseWithAPI creates a retriever over an existing client.
func NewKnowledgeBaseWithAPI(api RetrieveAPI, knowledgeBaseID string) *KnowledgeBase {
	return &KnowledgeBase{api: api, id: knowledgeBaseID}
}

// Retrieve implements Retriever.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	in := &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(k.id),
		RetrievalQuery:  &types.KnowledgeBaseQuery{Text: aws.String(query)},
	}
	if topK > 0 {
		in.RetrievalConfiguration = &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(topK)),
			},
		}
	}

	out, err := k.api.Retrieve(ctx, in)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		var d Document
		if r.Content != nil {
			d.Text = aws.ToString(r.Content.Text)
		}
		d.Score = aws.ToFloat64(r.Score)
		d.Source = location(r.Location)
		docs = append(docs, d)
	}

	return docs, nil
}

func location(l *types.RetrievalResultLocation) string {
	if l == nil {
		return ""
	}
	switch {
	case l.S3Location != nil:
		return aws.ToString(l.S3Location.Uri)
	case l.WebLocation != nil:
		return aws.ToString(l.WebLocation.Url)
	}
	return ""
}
