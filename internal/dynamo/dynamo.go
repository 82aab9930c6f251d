package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"mongotable/internal/common"
)

const pingTimeout = 5 * time.Second

// Connect builds a DynamoDB client for the configured region and endpoint and
// checks that the service answers.
func Connect(ctx context.Context, cfg common.ConfigProvider) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.GetAWSRegion()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := NewClient(awsCfg, cfg.GetDynamoEndpoint())

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := client.ListTables(pingCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return client, nil
}

// NewClient creates a client from awsCfg. A non-empty endpoint replaces the AWS
// endpoint, which is how DynamoDB Local and LocalStack are reached.
func NewClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
