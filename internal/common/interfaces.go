package common

// ConfigProvider is the interface for providing configuration settings.
type ConfigProvider interface {
	GetMongoURI() string
	GetMongoDB() string
	GetDynamoEndpoint() string
	GetDynamoTable() string
	GetAWSRegion() string
	GetMaxRetries() int
	GetAutoApprove() bool
}
