package guardrails_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	res   guardrails.Result
	err   error
	calls int
}

func (f *fakeBackend) Check(context.Context, string, guardrails.Direction) (guardrails.Result, error) {
	f.calls++
	return f.res, f.err
}

func TestDisabledSkipsBackend(t *testing.T) {
	backend := &fakeBackend{res: guardrails.Result{Valid: false, Violations: []string{"x"}}}
	c := guardrails.New("fake", backend, guardrails.Options{Enabled: false})

	res, err := c.Validate(context.Background(), "anything", guardrails.Input)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0, backend.calls)

	res, err = guardrails.Disabled().Validate(context.Background(), "x", guardrails.Output)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestViolationRecorded(t *testing.T) {
	mon := monitoring.New(monitoring.Options{})
	backend := &fakeBackend{res: guardrails.Result{Valid: false, Violations: []string{"Self-Harm"}}}
	c := guardrails.New("fake", backend, guardrails.Options{Enabled: true, Monitor: mon})

	res, err := c.Validate(context.Background(), "bad", guardrails.Input)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Self-Harm"}, res.Violations)

	metrics := mon.ByName(monitoring.GuardrailViolation)
	require.Len(t, metrics, 1)
	assert.Equal(t, "INPUT", metrics[0].Metadata["direction"])
}

func TestValidClearsViolations(t *testing.T) {
	backend := &fakeBackend{res: guardrails.Result{Valid: true, Violations: []string{"stale"}}}
	c := guardrails.New("fake", backend, guardrails.Options{Enabled: true})

	res, err := c.Validate(context.Background(), "ok", guardrails.Input)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Violations)
}

func TestBackendFailureIsNeverValid(t *testing.T) {
	backend := &fakeBackend{err: errors.New("timeout")}
	c := guardrails.New("fake", backend, guardrails.Options{Enabled: true})

	res, err := c.Validate(context.Background(), "hi", guardrails.Output)

	var berr *guardrails.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "fake", berr.Backend)
	assert.False(t, res.Valid)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		valid      bool
		violations []string
		wantErr    bool
	}{
		{name: "safe", raw: "safe", valid: true},
		{name: "safe with whitespace", raw: "\n  Safe \n", valid: true},
		{name: "unsafe with codes", raw: "unsafe\nO1,o6", violations: []string{"Violence and Hate", "Self-Harm"}},
		{name: "zero-prefixed code", raw: "unsafe\n07", violations: []string{"Financial Information related to Amazon"}},
		{name: "unknown code kept", raw: "unsafe\nO9", violations: []string{"O9"}},
		{name: "unsafe without codes", raw: "unsafe", violations: []string{"unspecified"}},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "garbage", raw: "I cannot help with that", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := guardrails.ParseVerdict(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, guardrails.ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.violations, res.Violations)
		})
	}
}

func TestClassifierBackend(t *testing.T) {
	var got modeladapter.Request
	sender := modeladapter.SenderFunc(func(_ context.Context, req modeladapter.Request) (modeladapter.Response, error) {
		got = req
		return modeladapter.Response{Text: "unsafe\nO2"}, nil
	})

	c := guardrails.New("llamaguard", &guardrails.ClassifierBackend{Sender: sender}, guardrails.Options{Enabled: true})

	res, err := c.Validate(context.Background(), "how do I rob a bank", guardrails.Output)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Criminal Planning"}, res.Violations)

	assert.Equal(t, guardrails.DefaultClassifierModel, got.Model)
	require.Len(t, got.Messages, 1)
	prompt := got.Messages[0].TextContent()
	assert.Contains(t, prompt, "unsafe content in 'assistant' messages")
	assert.Contains(t, prompt, "how do I rob a bank")
	assert.True(t, strings.HasPrefix(prompt, "[INST]"))
}

func TestClassifierUnparseableIsBackendError(t *testing.T) {
	sender := modeladapter.SenderFunc(func(context.Context, modeladapter.Request) (modeladapter.Response, error) {
		return modeladapter.Response{Text: ""}, nil
	})
	c := guardrails.New("llamaguard", &guardrails.ClassifierBackend{Sender: sender}, guardrails.Options{Enabled: true})

	_, err := c.Validate(context.Background(), "hi", guardrails.Input)

	var berr *guardrails.BackendError
	require.True(t, errors.As(err, &berr))
	assert.ErrorIs(t, err, guardrails.ErrUnparseable)
}

type fakeGuardrailAPI struct {
	in  *bedrockruntime.ApplyGuardrailInput
	out *bedrockruntime.ApplyGuardrailOutput
	err error
}

func (f *fakeGuardrailAPI) ApplyGuardrail(_ context.Context, in *bedrockruntime.ApplyGuardrailInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestBedrockBackendNone(t *testing.T) {
	api := &fakeGuardrailAPI{out: &bedrockruntime.ApplyGuardrailOutput{Action: types.GuardrailActionNone}}
	b := guardrails.NewBedrockWithAPI(api, "gr-1", "")

	res, err := b.Check(context.Background(), "hello", guardrails.Input)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	assert.Equal(t, "gr-1", aws.ToString(api.in.GuardrailIdentifier))
	assert.Equal(t, guardrails.DefaultGuardrailVersion, aws.ToString(api.in.GuardrailVersion))
	assert.Equal(t, types.GuardrailContentSourceInput, api.in.Source)
}

func TestBedrockBackendIntervened(t *testing.T) {
	api := &fakeGuardrailAPI{out: &bedrockruntime.ApplyGuardrailOutput{
		Action: types.GuardrailActionGuardrailIntervened,
		Assessments: []types.GuardrailAssessment{{
			TopicPolicy: &types.GuardrailTopicPolicyAssessment{
				Topics: []types.GuardrailTopic{{Name: aws.String("Investments")}},
			},
			ContentPolicy: &types.GuardrailContentPolicyAssessment{
				Filters: []types.GuardrailContentFilter{{Type: types.GuardrailContentFilterTypeHate}},
			},
		}},
	}}
	b := guardrails.NewBedrockWithAPI(api, "gr-1", "3")

	res, err := b.Check(context.Background(), "text", guardrails.Output)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Topic: Investments", "Content: HATE"}, res.Violations)
	assert.Equal(t, types.GuardrailContentSourceOutput, api.in.Source)
	assert.Equal(t, "3", aws.ToString(api.in.GuardrailVersion))
}

func TestBedrockBackendError(t *testing.T) {
	api := &fakeGuardrailAPI{err: errors.New("access denied")}
	c := guardrails.New("bedrock", guardrails.NewBedrockWithAPI(api, "gr", ""), guardrails.Options{Enabled: true})

	_, err := c.Validate(context.Background(), "text", guardrails.Input)

	var berr *guardrails.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Contains(t, err.Error(), "access denied")
}

func TestBedrockConfigValidate(t *testing.T) {
	assert.Error(t, guardrails.BedrockConfig{}.Validate())
	assert.NoError(t, guardrails.BedrockConfig{AccessKey: "a", SecretKey: "b", GuardrailID: "c"}.Validate())

	_, err := guardrails.NewBedrock(guardrails.BedrockConfig{AccessKey: "a", SecretKey: "b", GuardrailID: "c"})
	assert.NoError(t, err)
}
