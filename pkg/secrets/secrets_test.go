package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	out  *ssm.GetParameterOutput
	err  error
	last *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.last = in
	return f.out, f.err
}

func TestGetParameterDecrypts(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("/tourdesk/openai"),
		Value: aws.String(" sk-live \n"),
		Type:  types.ParameterTypeSecureString,
	}}}
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), "/tourdesk/openai")
	require.NoError(t, err)
	require.Equal(t, "sk-live", v)
	require.True(t, aws.ToBool(api.last.WithDecryption))
	require.Equal(t, "/tourdesk/openai", aws.ToString(api.last.Name))
}

func TestGetParameterErrors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
		in   string
		want string
	}{
		{"api error", &fakeAPI{err: errors.New("boom")}, "p", "boom"},
		{"missing value", &fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p")}}}, "p", "missing value"},
		{"empty name", &fakeAPI{}, "  ", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.api)
			require.NoError(t, err)
			_, err = c.GetParameter(context.Background(), tt.in)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewRejectsNilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}
