package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
)

type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ForwardObserver counts deliveries. *metrics.Metrics implements it.
type ForwardObserver interface {
	Forwarded(sink string, err error)
}

// SNSNotifier publishes every raised alert to a topic.
type SNSNotifier struct {
	svc      SNSAPI
	topicArn string
	deviceID string
	observer ForwardObserver
	log      zerolog.Logger
}

func NewSNSNotifier(ctx context.Context, region, topicArn, deviceID string, observer ForwardObserver, log zerolog.Logger) (*SNSNotifier, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSNSNotifierWith(sns.NewFromConfig(cfg), topicArn, deviceID, observer, log), nil
}

func NewSNSNotifierWith(svc SNSAPI, topicArn, deviceID string, observer ForwardObserver, log zerolog.Logger) *SNSNotifier {
	return &SNSNotifier{
		svc:      svc,
		topicArn: topicArn,
		deviceID: deviceID,
		observer: observer,
		log:      log.With().Str("component", "sns").Logger(),
	}
}

// SendAlert publishes one alert.
func (n *SNSNotifier) SendAlert(ctx context.Context, a domain.Alert) error {
	subject := fmt.Sprintf("Energy Monitor Alert: %s on %s", a.Kind, n.deviceID)
	message := fmt.Sprintf(
		"%s\n\n"+
			"Device: %s\n"+
			"Value: %.2f\n"+
			"Time: %s\n\n"+
			"%s",
		a.Message,
		n.deviceID,
		a.Value,
		a.Timestamp.Format(time.RFC3339),
		a.Advice,
	)
	res, err := n.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	n.log.Info().Str("messageId", aws.ToString(res.MessageId)).Str("kind", string(a.Kind)).Msg("alert sent")
	return nil
}

// Run forwards AlertRaised events until in is closed or ctx is done.
// Delivery failures are logged and not retried.
func (n *SNSNotifier) Run(ctx context.Context, in <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if ev.Alert == nil {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := n.SendAlert(sendCtx, *ev.Alert)
			cancel()
			if n.observer != nil {
				n.observer.Forwarded("sns", err)
			}
			if err != nil {
				n.log.Error().Err(err).Str("alert", ev.Alert.ID).Msg("alert notification failed")
			}
		}
	}
}
