package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "ap-south-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "ap-south-1" {
		t.Fatalf("expected region ap-south-1, got %q", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "test" {
		t.Fatalf("expected static credentials, got %+v (%v)", creds, err)
	}

	for _, service := range []string{sqs.ServiceID, sesv2.ServiceID} {
		endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(service, "ap-south-1")
		if err != nil {
			t.Fatalf("%s: resolve endpoint: %v", service, err)
		}
		if endpoint.URL != "http://localhost:4566" {
			t.Fatalf("%s: expected override URL, got %q", service, endpoint.URL)
		}
	}

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "ap-south-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected unrelated services to use default resolution, got %v", err)
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no endpoint resolver without an override")
	}
}

func TestLoadAWSConfigIgnoresBlankOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{
		AWSRegion:           "ap-south-1",
		AWSEndpointOverride: "   ",
	})
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected whitespace override to be ignored")
	}
}

func TestLocalEndpointCoversAuditTable(t *testing.T) {
	endpoint, err := localEndpoint("http://localstack:4566", "ap-south-1").ResolveEndpoint(dynamodb.ServiceID, "ap-south-1")
	if err != nil {
		t.Fatalf("resolve dynamodb: %v", err)
	}
	if endpoint.URL != "http://localstack:4566" || endpoint.SigningRegion != "ap-south-1" {
		t.Fatalf("unexpected endpoint %+v", endpoint)
	}
}
