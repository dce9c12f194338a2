package guardrails

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// Bedrock defaults.
const (
	DefaultGuardrailVersion = "DRAFT"
	DefaultRegion           = "us-east-1"
)

// GuardrailAPI is the part of the Bedrock runtime client the backend uses.
type GuardrailAPI interface {
	ApplyGuardrail(ctx context.Context, in *bedrockruntime.ApplyGuardrailInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
}

// BedrockConfig holds the managed guardrail settings.
type BedrockConfig struct {
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	GuardrailID string `yaml:"guardrail_id"`
	Version     string `yaml:"version"`
	Region      string `yaml:"region"`
}

// Validate checks that credentials and the guardrail id are present.
func (c BedrockConfig) Validate() error {
	if c.AccessKey == "" || c.SecretKey == "" || c.GuardrailID == "" {
		return errors.New("guardrails: bedrock needs access_key, secret_key and guardrail_id")
	}
	return nil
}

// BedrockBackend checks text with an AWS Bedrock guardrail.
type BedrockBackend struct {
	api     GuardrailAPI
	id      string
	version string
}

// NewBedrock creates a backend with a static-credential Bedrock client.
func NewBedrock(cfg BedrockConfig) (*BedrockBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	client := bedrockruntime.New(bedrockruntime.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return NewBedrockWithAPI(client, cfg.GuardrailID, cfg.Version), nil
}

// NewBedrockWithAPI creates a backend over an existing client.
func NewBedrockWithAPI(api GuardrailAPI, guardrailID, version string) *BedrockBackend {
	if version == "" {
		version = DefaultGuardrailVersion
	}
	return &BedrockBackend{api: api, id: guardrailID, version: version}
}

// Check implements Backend.
func (b *BedrockBackend) Check(ctx context.Context, text string, dir Direction) (Result, error) {
	source := types.GuardrailContentSourceInput
	if dir == Output {
		source = types.GuardrailContentSourceOutput
	}

	out, err := b.api.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(b.id),
		GuardrailVersion:    aws.String(b.version),
		Source:              source,
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{Value: types.GuardrailTextBlock{Text: aws.String(text)}},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply guardrail: %w", err)
	}

	if out.Action != types.GuardrailActionGuardrailIntervened {
		return Result{Valid: true, Raw: out}, nil
	}

	violations := assessmentViolations(out.Assessments)
	if len(violations) == 0 {
		violations = []string{"guardrail intervened"}
	}

	return Result{Valid: false, Violations: violations, Raw: out}, nil
}

func assessmentViolations(assessments []types.GuardrailAssessment) []string {
	var out []string
	for _, a := range assessments {
		if a.TopicPolicy != nil {
			for _, t := range a.TopicPolicy.Topics {
				out = append(out, "Topic: "+aws.ToString(t.Name))
			}
		}
		if a.ContentPolicy != nil {
			for _, f := range a.ContentPolicy.Filters {
				out = append(out, "Content: "+string(f.Type))
			}
		}
		if a.WordPolicy != nil {
			for _, w := range a.WordPolicy.CustomWords {
				out = append(out, "Word: "+aws.ToString(w.Match))
			}
			for _, w := range a.WordPolicy.ManagedWordLists {
				out = append(out, "Word: "+aws.ToString(w.Match))
			}
		}
		if a.SensitiveInformationPolicy != nil {
			for _, p := range a.SensitiveInformationPolicy.PiiEntities {
				out = append(out, "PII: "+string(p.Type))
			}
			for _, r := range a.SensitiveInformationPolicy.Regexes {
				out = append(out, "Regex: "+aws.ToString(r.Name))
			}
		}
	}
	return out
}
