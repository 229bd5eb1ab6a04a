package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends each event as a JSON message to one queue. The message
// carries the event type as an attribute so consumers can filter without
// decoding the body.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// NewSQSPublisher loads the default AWS credential chain for region.
func NewSQSPublisher(ctx context.Context, region, queueURL string, logger *zap.Logger) (*SQSPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSPublisher(sqs.NewFromConfig(awsCfg), queueURL, logger), nil
}

func newSQSPublisher(client sqsAPI, queueURL string, logger *zap.Logger) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

func (p *SQSPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(event.Type))},
			"plot_id":    {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(event.PlotID))},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	p.logger.Debug("reservation event sent to sqs",
		zap.String("type", string(event.Type)),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
