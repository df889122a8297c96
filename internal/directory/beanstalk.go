package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
)

// DescribeEnvironmentsAPI is the part of the Elastic Beanstalk client used
// by BeanstalkSource.
type DescribeEnvironmentsAPI interface {
	DescribeEnvironments(ctx context.Context, params *elasticbeanstalk.DescribeEnvironmentsInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeEnvironmentsOutput, error)
}

// NewBeanstalkClient creates an Elastic Beanstalk client. Static credentials
// are used when both keys are given; otherwise the default AWS credential
// chain applies.
func NewBeanstalkClient(ctx context.Context, region, accessKeyID, secretAccessKey string) (*elasticbeanstalk.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return elasticbeanstalk.NewFromConfig(cfg), nil
}

// BeanstalkSource resolves environments through DescribeEnvironments.
// Platform environment names carry a prefix (e.g. "hollowverse-master");
// callers use unprefixed names ("master") throughout.
type BeanstalkSource struct {
	api         DescribeEnvironmentsAPI
	application string
	prefix      string
}

// NewBeanstalkSource creates a source for the given application.
func NewBeanstalkSource(api DescribeEnvironmentsAPI, application, prefix string) *BeanstalkSource {
	return &BeanstalkSource{api: api, application: application, prefix: prefix}
}

// Name implements Source.
func (b *BeanstalkSource) Name() string { return SourceElasticBeanstalk }

// Fetch implements Source. Terminated environments and environments without
// an endpoint are omitted.
func (b *BeanstalkSource) Fetch(ctx context.Context, names []string) (map[string]string, error) {
	envNames := make([]string, len(names))
	for i, name := range names {
		envNames[i] = b.prefix + name
	}

	out, err := b.api.DescribeEnvironments(ctx, &elasticbeanstalk.DescribeEnvironmentsInput{
		ApplicationName:  aws.String(b.application),
		EnvironmentNames: envNames,
		IncludeDeleted:   aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe environments: %w", err)
	}

	urls := make(map[string]string, len(out.Environments))
	for _, env := range out.Environments {
		switch env.Status {
		case types.EnvironmentStatusTerminated, types.EnvironmentStatusTerminating:
			continue
		}
		name := strings.TrimPrefix(aws.ToString(env.EnvironmentName), b.prefix)
		url := aws.ToString(env.EndpointURL)
		if name == "" || url == "" {
			continue
		}
		urls[name] = url
	}
	return urls, nil
}

// Close is a no-op; the AWS client holds no resources that need releasing.
func (b *BeanstalkSource) Close() error { return nil }
