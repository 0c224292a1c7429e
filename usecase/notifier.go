package usecase

import (
	"context"
	"time"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/sirupsen/logrus"
)

// Notifier receives side effects the pipeline only schedules: read and
// delivery notifications, avatar refreshes, connection signals. Production
// deployments hand these to an external job system; the default logs them.
type Notifier interface {
	StatusChanged(ctx context.Context, conv *messaging.Conversation, status messaging.Status, at time.Time)
	AvatarRefresh(ctx context.Context, contact *messaging.Contact, url string)
	QRCodeUpdated(ctx context.Context, ch *channel.Channel, encoded string)
	ConnectionUpdated(ctx context.Context, ch *channel.Channel, state channel.ConnectionState)
}

type LogNotifier struct{}

func (LogNotifier) StatusChanged(_ context.Context, conv *messaging.Conversation, status messaging.Status, at time.Time) {
	logrus.Infof("[NOTIFY] conversation %s reached %s at %s", conv.ID, status, at.Format(time.RFC3339))
}

func (LogNotifier) AvatarRefresh(_ context.Context, contact *messaging.Contact, url string) {
	logrus.Infof("[NOTIFY] avatar refresh for contact %s", contact.ID)
}

func (LogNotifier) QRCodeUpdated(_ context.Context, ch *channel.Channel, _ string) {
	logrus.Infof("[NOTIFY] new qr code for instance %s", ch.InstanceName)
}

func (LogNotifier) ConnectionUpdated(_ context.Context, ch *channel.Channel, state channel.ConnectionState) {
	logrus.Infof("[NOTIFY] instance %s connection is now %s", ch.InstanceName, state)
}
