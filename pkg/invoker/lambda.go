package invoker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// lambdaAPI is the subset of the Lambda client the invoker uses.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, opts ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker triggers AWS Lambda functions with Event (asynchronous)
// invocation semantics.
type LambdaInvoker struct {
	client lambdaAPI
}

// NewLambdaInvoker creates an invoker using the default AWS credential chain.
func NewLambdaInvoker(ctx context.Context) (*LambdaInvoker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &LambdaInvoker{client: lambda.NewFromConfig(cfg)}, nil
}

// NewLambdaInvokerWithClient creates an invoker on an existing client.
func NewLambdaInvokerWithClient(client *lambda.Client) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

func (i *LambdaInvoker) InvokeAsync(ctx context.Context, functionName string, event []byte) error {
	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        event,
	})
	if err != nil {
		return &InvocationError{FunctionName: functionName, Err: err}
	}
	// Event invocations return 202 on accept; anything else means the
	// request was rejected before execution started.
	if out.StatusCode != 202 {
		return &InvocationError{
			FunctionName: functionName,
			Err:          fmt.Errorf("unexpected status %d", out.StatusCode),
		}
	}
	return nil
}
